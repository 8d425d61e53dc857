package main

import (
	"fmt"

	"github.com/socially-app/socially/models"
	"gorm.io/gorm"
)

type PurgeActionsCmd struct {
}

func (c *PurgeActionsCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}
	n, err := models.NewPendingActions(db).PurgeFailed()
	if err != nil {
		return err
	}
	fmt.Println("purged", n, "failed actions")
	return nil
}
