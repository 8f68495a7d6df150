package dbhelper

import (
	"closetapi/models"
	"log"

	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {

		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitLog{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitFeedback{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Clothing{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})

	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %T", model)
		log.Fatal(err)
	}
}
