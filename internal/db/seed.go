package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCampuses = []string{"North", "South", "Riverside", "Medical"}

// SeedTestData resets the database and populates it with demo users and swipes.
//
// Behavior:
//  1. Clears existing rows in every core table.
//  2. Creates 20 users (10 male, 10 female), every 7th one premium.
//  3. Generates one-way right/left swipes between opposite genders. No
//     matches are created: mutual matches only ever come from the engine.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := clearAll(db); err != nil {
		return err
	}
	log.Println("Cleared existing data")

	users := make([]User, 0, 20)
	for i := 1; i <= 20; i++ {
		u := NewUser(fmt.Sprintf("user%d", i), fmt.Sprintf("Student %d", i))
		u.Gender = "male"
		if i > 10 {
			u.Gender = "female"
		}
		u.Campus = seedCampuses[i%len(seedCampuses)]
		u.GradYear = 2025 + r.Intn(4)
		u.IsPremium = i%7 == 0
		users = append(users, u)
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Println("Seeded 20 users.")

	now := time.Now().UTC()
	seen := map[string]bool{}
	records := make([]SwipeRecord, 0, 64)
	for _, actor := range users {
		for j := 0; j < 3; j++ {
			target := users[r.Intn(len(users))]
			if target.ID == actor.ID || target.Gender == actor.Gender {
				continue
			}
			// never seed both directions of a pair, that would be an unrecorded match
			if seen[actor.ID+"|"+target.ID] || seen[target.ID+"|"+actor.ID] {
				continue
			}
			seen[actor.ID+"|"+target.ID] = true

			dir := DirectionLeft
			if r.Intn(100) < 70 {
				dir = DirectionRight
			}
			records = append(records, MirroredSwipe(actor.ID, target.ID, dir, now)...)
		}
	}
	if len(records) > 0 {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
			return fmt.Errorf("failed to seed swipes: %w", err)
		}
	}
	log.Printf("Seeded %d swipes.", len(records)/2)
	return nil
}

// SeedMinimalTestData inserts a small deterministic dataset:
//   - u1, u2, u3 regular users, u4 premium
//   - u1 → u2 right (one-way, u2 can complete a match)
//   - u3 → u1 right, u1 → u3 left
func SeedMinimalTestData(db *gorm.DB) error {
	if err := clearAll(db); err != nil {
		return err
	}

	users := []User{
		NewUser("u1", "Alex"),
		NewUser("u2", "Blair"),
		NewUser("u3", "Casey"),
		NewUser("u4", "Devon"),
	}
	users[3].IsPremium = true
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	var records []SwipeRecord
	records = append(records, MirroredSwipe("u1", "u2", DirectionRight, now)...)
	records = append(records, MirroredSwipe("u3", "u1", DirectionRight, now)...)
	records = append(records, MirroredSwipe("u1", "u3", DirectionLeft, now)...)
	return db.Create(&records).Error
}

// MirroredSwipe returns the outgoing and incoming records of one swipe.
func MirroredSwipe(swiperID, swipedID, direction string, at time.Time) []SwipeRecord {
	return []SwipeRecord{
		{OwnerID: swiperID, OtherID: swipedID, Box: BoxOutgoing, Direction: direction, CreatedAt: at},
		{OwnerID: swipedID, OtherID: swiperID, Box: BoxIncoming, Direction: direction, CreatedAt: at},
	}
}

func clearAll(db *gorm.DB) error {
	for _, table := range []string{"channel_messages", "channels", "photos", "matches", "swipe_records", "swipe_counters", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
