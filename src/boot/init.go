package boot

import (
	"accessbus/src/common"
	"accessbus/src/config"
	"accessbus/src/db"
	"accessbus/src/lib"
	awslib "accessbus/src/lib/aws"
	"accessbus/src/models"
	"accessbus/src/transit"
	"accessbus/src/utils"
	"context"
	"errors"
	"log"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(models.All()...)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	if err := SeedAccessibilityRequirements(db); err != nil {
		log.Printf("Error seeding accessibility requirements: %s\n", err.Error())
	}

	return db
}

func SeedAccessibilityRequirements(db *gorm.DB) error {
	requirements := make([]models.AccessibilityRequirement, len(models.DefaultAccessibilityRequirements))
	copy(requirements, models.DefaultAccessibilityRequirements)
	return db.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&requirements).
		Error
}

// InitScheduler registers the reservation expiry sweep and starts the scheduler.
func InitScheduler() {
	if _, err := lib.CreateCronJob("expire-reservations", common.ExpireReservationsJob, config.SweepInterval()); err != nil {
		log.Printf("Error scheduling reservation sweep: %s\n", err.Error())
		return
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	sched.Start()
	log.Println("Jobs in queue:", len(sched.Jobs()))
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Error stopping scheduler: %s\n", err.Error())
	}
}

// InitSecrets resolves JWT_SECRET_ARN through Secrets Manager when set and
// fails when no signing key is configured.
func InitSecrets(ctx context.Context) error {
	if arn := os.Getenv("JWT_SECRET_ARN"); arn != "" {
		client, err := awslib.GetSecretsClient(ctx)
		if err != nil {
			return err
		}
		secret, err := awslib.GetSecretString(ctx, client, arn)
		if err != nil {
			return err
		}
		utils.SetJWTKey([]byte(secret))
		log.Println("JWT secret loaded from Secrets Manager")
	}
	if len(utils.JWTKey()) == 0 {
		return errors.New("JWT_SECRET or JWT_SECRET_ARN must be set")
	}
	return nil
}

// InitStorage selects S3 when S3_DOCUMENTS_BUCKET is set, else the local directory.
func InitStorage(ctx context.Context) error {
	bucket := os.Getenv("S3_DOCUMENTS_BUCKET")
	if bucket == "" {
		log.Printf("Documents stored locally via %s\n", lib.GetStorage().Name())
		return nil
	}
	client, err := awslib.GetS3Client(ctx)
	if err != nil {
		return err
	}
	lib.NewStorage(awslib.NewS3Storage(bucket, client))
	log.Printf("Documents stored in s3://%s\n", bucket)
	return nil
}

// InitPublisher selects SNS when SNS_TOPIC_ARN is set, else events are logged.
func InitPublisher(ctx context.Context) error {
	topic := os.Getenv("SNS_TOPIC_ARN")
	if topic == "" {
		return nil
	}
	client, err := awslib.GetSNSClient(ctx)
	if err != nil {
		return err
	}
	lib.NewPublisher(awslib.NewSNSPublisher(topic, client))
	return nil
}

// InitPlanner loads STOPS_FILE when set, else the embedded catalog.
func InitPlanner() error {
	file := os.Getenv("STOPS_FILE")
	if file == "" {
		log.Printf("Loaded %d stops\n", transit.GetPlanner().Catalog.Len())
		return nil
	}
	c, err := transit.CatalogFromFile(file)
	if err != nil {
		return err
	}
	p := transit.GetPlanner()
	transit.NewPlanner(&transit.Planner{
		Catalog:  c,
		Feed:     transit.NewSimulatedFeed(c, p.Routes),
		Routes:   p.Routes,
		SpeedKmh: p.SpeedKmh,
		Now:      p.Now,
	})
	log.Printf("Loaded %d stops from %s\n", c.Len(), file)
	return nil
}
