package main

import (
	"fmt"
	"time"

	"github.com/socially-app/socially/models"
	"gorm.io/gorm"
)

type HouseKeepingCmd struct {
	TombstoneAge time.Duration `help:"age after which message tombstones are removed" default:"720h"`
}

func (c *HouseKeepingCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		// delete stories past their expiry
		res := tx.Where("expires_at <= ?", time.Now()).Delete(&models.Story{})
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "expired stories")

		// delete message tombstones old enough that no client still renders them
		res = tx.Where("deleted_at IS NOT NULL AND deleted_at < ?", time.Now().Add(-c.TombstoneAge)).
			Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "old message tombstones")

		// delete likes and comments whose post is gone
		res = tx.Exec(`
			DELETE FROM post_likes
			WHERE post_id NOT IN (SELECT id FROM posts)
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "orphaned likes")

		res = tx.Exec(`
			DELETE FROM post_comments
			WHERE post_id NOT IN (SELECT id FROM posts)
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "orphaned comments")

		return nil
	})
}
