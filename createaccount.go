package main

import (
	"fmt"

	"github.com/socially-app/socially/models"
	"gorm.io/gorm"
)

type CreateAccountCmd struct {
	Username string `required:"" help:"username of the account to create"`
	Email    string `required:"" help:"email address of the account to create"`
	Password string `required:"" help:"password of the account to create"`
}

func (c *CreateAccountCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}
	user, err := models.NewUsers(db).Create(c.Username, c.Email, c.Password)
	if err != nil {
		return err
	}
	fmt.Println("created user", user.Username, "id:", user.ID)
	return nil
}
