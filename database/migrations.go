package database

import (
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
)

func RunMigrations(db *gorm.DB) error {
	logger := common.Logger("database")
	logger.Info().Msg("running database migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.FeedTag{},
		&models.Blog{},
		&models.BlogTag{},
		&models.BlogLike{},
		&models.BlogBookmark{},
		&models.Comment{},
		&models.Reply{},
	)

	if err != nil {
		logger.Error().Err(err).Msg("error running migrations")
		return err
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}
