package main

import (
	"context"
	"log"
	"os"
	"time"

	"nagarseva-be/config"
	"nagarseva-be/models"
	"nagarseva-be/routes"
	"nagarseva-be/services"
	"nagarseva-be/store"

	"github.com/joho/godotenv"
)

// seedDefaultAdmin creates the bootstrap admin account on first run so the
// administrative directory can be populated without touching the database.
func seedDefaultAdmin(ctx context.Context, st store.Store) {
	email := os.Getenv("DEFAULT_ADMIN_EMAIL")
	password := os.Getenv("DEFAULT_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	count, err := st.CountUsersByType(ctx, models.Admin)
	if err != nil {
		log.Println("Error checking for existing admin:", err)
		return
	}
	if count > 0 {
		return
	}

	admin := models.User{
		Name:      "Administrator",
		Email:     email,
		Password:  password,
		UserType:  models.Admin,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := admin.HashPassword(); err != nil {
		log.Println("Error hashing default admin password:", err)
		return
	}
	if err := st.CreateUser(ctx, &admin); err != nil {
		log.Println("Error seeding default admin:", err)
		return
	}
	log.Println("Default admin account created:", email)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	log.Println("MongoDB connection established successfully!")

	config.ConnectRedis()

	st := store.NewMongoStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Println("Error ensuring indexes:", err)
	}
	seedDefaultAdmin(ctx, st)

	var emitter services.Emitter = services.LogEmitter{}
	if config.RedisClient != nil {
		emitter = &services.RedisEmitter{
			Client:  config.RedisClient,
			Channel: "nagarseva:events",
		}
	}

	r := routes.SetupRouter(st, emitter)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
