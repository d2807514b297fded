package config

import (
	"log"
	"os"

	"github.com/Lupao-eth/triptask-backend/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// JWTSecret used to sign session tokens; read from env or fallback
var JWTSecret = []byte(getEnv("JWT_SECRET", "triptask_super_secret_2024"))

// UploadSignSecret signs time-limited download URLs for stored files
var UploadSignSecret = []byte(getEnv("UPLOAD_SIGN_SECRET", "triptask_upload_sign_secret"))

// UploadDir is where uploaded blobs live on disk
var UploadDir = getEnv("UPLOAD_DIR", "public/uploads")

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func InitDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open(getEnv("TRIPTASK_DB", "triptask.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Println("✅ Database connected and migrated successfully")
}

// Migrate runs the schema migration and seeds the service-status row.
// Split out of InitDB so tests can run it against their own database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.ChatMessage{},
		&models.ServiceStatus{},
	)
	if err != nil {
		return err
	}

	// Provision the single circuit-breaker row. Updated in place forever after.
	seed := models.ServiceStatus{ID: 1, IsOnline: true, Version: 1}
	return db.Where("id = ?", 1).FirstOrCreate(&seed).Error
}
