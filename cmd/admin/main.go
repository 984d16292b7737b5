package main

import (
	"fmt"
	"log"
	"os"

	"qalatransit/backend/internal/importer"
	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/storage"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.Complaint{}, &models.User{}); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil, nil) // no Redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: seed-users | seed-data | import <file>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed-users":
		if err := seedUsers(storageSvc); err != nil {
			log.Fatalf("Error seeding users: %v", err)
		}
		fmt.Println("Default users created: admin, resident")
	case "seed-data":
		n, err := seedComplaints(storageSvc)
		if err != nil {
			log.Fatalf("Error seeding complaints: %v", err)
		}
		fmt.Printf("Seeded %d sample complaints.\n", n)
	case "import":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin import <file>")
			os.Exit(1)
		}
		body, err := os.ReadFile(os.Args[2])
		if err != nil {
			log.Fatalf("Error reading file: %v", err)
		}
		res := importer.New(storageSvc, nil).ImportText(string(body))
		fmt.Printf("Imported %d, skipped %d.\n", res.Imported, res.Skipped)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func seedUsers(s storage.Storage) error {
	users := []struct {
		username, password, email, role string
	}{
		{"admin", "admin123", "admin@qalatransit.kz", models.RoleAdmin},
		{"resident", "user123", "resident@qalatransit.kz", models.RoleUser},
	}
	for _, u := range users {
		if exists, err := s.UsernameExists(u.username); err != nil {
			return err
		} else if exists {
			continue
		}
		user := &models.User{
			Username: u.username,
			Email:    u.email,
			Enabled:  true,
			Roles:    pq.StringArray{u.role},
		}
		if err := user.SetPassword(u.password); err != nil {
			return err
		}
		if err := s.CreateUser(user); err != nil {
			return err
		}
	}
	return nil
}

func str(s string) *string   { return &s }
func f64(f float64) *float64 { return &f }

func seedComplaints(s storage.Storage) (int, error) {
	count, err := s.CountComplaints()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil // already seeded
	}

	samples := []models.Complaint{
		{
			RawText:   str("65 автобус өте ескі, іші лас, жолаушыларға орын жетпейді. Жүргізуші өте дөрекі және ережені бұзады"),
			Route:     str("65"),
			Object:    str("Автобус"),
			Place:     str("Момышұлы-Панфилов аялдамасы"),
			Actor:     str("Жүргізуші"),
			Aspect:    pq.StringArray{"Автобус сапасы", "Жүргізуші мінез-құлқы", "Қауіпсіздік"},
			Priority:  str("Жоғары"),
			Latitude:  f64(43.238949),
			Longitude: f64(76.889709),
			CreatedBy: "system",
		},
		{
			RawText:   str("Автобус 12 маршрут постоянно опаздывает на 20-30 минут. Сегодня ждал целый час!"),
			Route:     str("12"),
			Object:    str("Автобус"),
			Place:     str("Микрорайон Алатау"),
			Actor:     str("Диспетчерская служба"),
			Aspect:    pq.StringArray{"Расписание", "Время ожидания"},
			Priority:  str("Орташа"),
			Latitude:  f64(43.210701),
			Longitude: f64(76.851348),
			CreatedBy: "system",
		},
		{
			RawText:   str("Троллейбус №4 ішінде кондиционер жұмыс істемейді, жазда өте ыстық болады"),
			Route:     str("4"),
			Object:    str("Троллейбус"),
			Place:     str("Республика алаңы"),
			Actor:     str("Қызмет көрсету бөлімі"),
			Aspect:    pq.StringArray{"Жабдық", "Жайлылық"},
			Priority:  str("Төмен"),
			Latitude:  f64(43.238293),
			Longitude: f64(76.945465),
			CreatedBy: "system",
		},
		{
			RawText:   str("95 маршрут автобусында жүргізуші өте жылдам жүреді, тежегенде адамдар құлайды. Қауіпті!"),
			Route:     str("95"),
			Object:    str("Автобус"),
			Place:     str("Самал-2 шағын ауданы"),
			Actor:     str("Жүргізуші"),
			Aspect:    pq.StringArray{"Қауіпсіздік", "Жүргізу стилі", "Жолаушы қауіпсіздігі"},
			Priority:  str("Өте жоғары"),
			Latitude:  f64(43.232908),
			Longitude: f64(76.867265),
			CreatedBy: "system",
		},
	}

	for i := range samples {
		if err := s.SaveComplaint(&samples[i]); err != nil {
			return i, err
		}
	}
	return len(samples), nil
}
