package db

import (
	"accessbus/src/config"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var db *gorm.DB

func GetDb() *gorm.DB {
	if db != nil {
		return db
	}
	_db, err := gorm.Open(dialector())
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Fatalf("Error establishing connection to database: %s\n", err.Error())
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	db = _db
	return _db
}

// DATABASE_DRIVER=sqlite runs against a local file for development.
func dialector() gorm.Dialector {
	if os.Getenv("DATABASE_DRIVER") == "sqlite" {
		file := os.Getenv("DATABASE_PATH")
		if file == "" {
			file = "accessbus.db"
		}
		return sqlite.Open(file)
	}
	return postgres.Open(config.GetDSN())
}

func NewDB(newdb *gorm.DB) {
	db = newdb
}
