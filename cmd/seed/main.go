package main

import (
	"context"
	"log"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/config"
	"evms-backend/internal/db"
	"evms-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedPackage struct {
	Name            string
	Description     string
	Price           int64
	DurationMinutes int
	Services        []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	packages := []seedPackage{
		{
			Name:            "Bảo dưỡng định kỳ",
			Description:     "Kiểm tra tổng quát xe điện theo lịch của hãng.",
			Price:           450000,
			DurationMinutes: 90,
			Services:        []string{"Kiểm tra pin cao áp", "Kiểm tra hệ thống phanh", "Cập nhật phần mềm"},
		},
		{
			Name:            "Kiểm tra pin chuyên sâu",
			Description:     "Đo dung lượng thực tế và cân bằng cell.",
			Price:           800000,
			DurationMinutes: 120,
			Services:        []string{"Đo SOH", "Cân bằng cell", "Kiểm tra hệ thống làm mát pin"},
		},
		{
			Name:            "Thay lốp và cân chỉnh",
			Description:     "Thay lốp, cân bằng động và căn chỉnh góc đặt bánh xe.",
			Price:           300000,
			DurationMinutes: 60,
			Services:        []string{"Thay lốp", "Cân bằng động", "Căn chỉnh thước lái"},
		},
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, pkg := range packages {
		slug := utils.Slugify(pkg.Name)
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":             primitive.NewObjectID().Hex(),
				"name":            pkg.Name,
				"slug":            slug,
				"description":     pkg.Description,
				"price":           pkg.Price,
				"durationMinutes": pkg.DurationMinutes,
				"services":        pkg.Services,
				"active":          true,
				"createdAt":       now,
				"updatedAt":       now,
			},
		}
		if _, err := cols.ServicePackages.UpdateOne(ctx, bson.M{"slug": slug}, update, options.Update().SetUpsert(true)); err != nil {
			log.Fatalf("seed error for %s: %v", pkg.Name, err)
		}
	}

	if cfg.AdminPassword == "" {
		log.Printf("seed admin: ADMIN_PASSWORD missing, skipping %s", cfg.AdminEmail)
	} else if err := seedAdminUser(ctx, cols, cfg.AdminEmail, cfg.AdminPassword, now); err != nil {
		log.Fatalf("seed admin error for %s: %v", cfg.AdminEmail, err)
	}

	log.Println("seed completed")
}

func seedAdminUser(ctx context.Context, cols *db.Collections, email, password string, now time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"passwordHash": hash,
			"role":         auth.RoleAdmin,
			"disabled":     false,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"email":     email,
			"fullName":  "Administrator",
			"createdAt": now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, bson.M{"email": email}, update, options.Update().SetUpsert(true))
	return err
}
