package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears profiles, preferences, interactions, matches, guardian links
//     and usage counters.
//  2. Creates 20 profiles (10 male, 10 female) with hashed passwords and
//     varied attributes, a preference row each and an active guardian link
//     each (guardian IDs start at 100).
//  3. Generates interactions with ~70% likes; every 3rd pair gets a
//     reciprocal like so the mutual-detection path has material to work on.
//  4. Creates one ready-made pending_wali match for the first mutual pair so
//     the approval flow is demonstrable out of the box.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"usage_counters", "matches", "interactions", "guardian_links", "preferences", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	sects := []string{"sunni", "shia", ""}
	religiosity := []string{"practicing", "moderate", "learning"}
	cities := []struct{ country, city string }{
		{"GB", "London"}, {"GB", "Manchester"}, {"US", "Chicago"},
		{"US", "Houston"}, {"CA", "Toronto"},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}
		loc := cities[r.Intn(len(cities))]
		age := 22 + r.Intn(16)

		profile := Profile{
			Email:              fmt.Sprintf("user%d@example.com", i),
			PasswordHash:       string(hash),
			FullName:           fmt.Sprintf("Demo User %d", i),
			Bio:                "Looking for a serious, family-approved match.",
			Gender:             gender,
			DateOfBirth:        time.Now().UTC().AddDate(-age, 0, -r.Intn(300)),
			Country:            loc.country,
			City:               loc.city,
			Sect:               sects[r.Intn(len(sects))],
			Religiosity:        religiosity[r.Intn(len(religiosity))],
			PrayerFrequency:    "daily",
			Education:          "bachelors",
			Occupation:         "engineer",
			MaritalStatus:      "never_married",
			WantsChildren:      true,
			Languages:          "english,arabic",
			VerificationStatus: VerificationVerified,
			Tier:               TierFree,
		}
		if i%5 == 0 {
			profile.Tier = TierPremium
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		pref := Preference{
			UserID:             profile.ID,
			MinAge:             21,
			MaxAge:             40,
			AllowInternational: i%2 == 0,
			PreferNeverMarried: i%4 == 0,
		}
		if err := db.Create(&pref).Error; err != nil {
			return fmt.Errorf("failed to seed preference: %w", err)
		}

		link := GuardianLink{
			WardID:     profile.ID,
			GuardianID: 100 + profile.ID,
			Status:     GuardianActive,
		}
		if err := db.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to seed guardian link: %w", err)
		}
	}
	log.Println("Seeded 20 profiles with preferences and guardian links.")

	var profiles []Profile
	if err := db.Order("id").Find(&profiles).Error; err != nil {
		return err
	}

	var firstMutual *Match
	counter := 0
	for _, actor := range profiles {
		for j := 0; j < 8; j++ {
			target := profiles[r.Intn(len(profiles))]
			if actor.ID == target.ID || actor.Gender == target.Gender {
				continue
			}

			action := ActionLike
			if r.Intn(100) >= 70 {
				action = ActionPass
			}

			if counter%3 == 0 {
				action = ActionLike
				recip := Interaction{ActorID: target.ID, TargetID: actor.ID, Action: ActionLike}
				db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
				}).Create(&recip)

				if firstMutual == nil {
					u1, u2 := actor.ID, target.ID
					if u1 > u2 {
						u1, u2 = u2, u1
					}
					firstMutual = &Match{
						ID:       uuid.NewString(),
						User1ID:  u1,
						User2ID:  u2,
						Status:   MatchPendingWali,
						IsActive: true,
					}
				}
			}

			interaction := Interaction{ActorID: actor.ID, TargetID: target.ID, Action: action}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
			}).Create(&interaction).Error; err != nil {
				return fmt.Errorf("failed to seed interaction: %w", err)
			}

			counter++
		}
	}
	log.Printf("Seeded %d interactions.", counter)

	if firstMutual != nil {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(firstMutual).Error; err != nil {
			return fmt.Errorf("failed to seed demo match: %w", err)
		}
		log.Printf("Seeded pending match %s for users %d and %d.",
			firstMutual.ID, firstMutual.User1ID, firstMutual.User2ID)
	}

	return nil
}
