package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cottage/internal/auth"
	"cottage/internal/database"
	"cottage/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		usersPath = flag.String("users", "configs/users.yaml", "path to users.yaml")
		dbPath    = flag.String("db", "./data/cottage.db", "path to sqlite db")
		sample    = flag.Bool("sample", false, "also insert a sample booking and issue")
	)
	flag.Parse()

	data, err := os.ReadFile(*usersPath)
	if err != nil {
		return fmt.Errorf("read users: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &seed); err != nil {
		return fmt.Errorf("parse users: %w", err)
	}
	if len(seed.Users) == 0 {
		return errors.New("no users in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := upsertUsers(ctx, db, seed.Users)
	if err != nil {
		return err
	}
	logger.Info().Int("users", len(users)).Str("db", *dbPath).Msg("users seeded")

	if *sample {
		if err := insertSample(ctx, db, users); err != nil {
			return err
		}
		logger.Info().Msg("sample booking and issue inserted")
	}
	return nil
}

func upsertUsers(ctx context.Context, db *database.DB, seed []seedUser) ([]*models.User, error) {
	users := make([]*models.User, 0, len(seed))
	for _, su := range seed {
		if su.Email == "" || su.Password == "" {
			return nil, fmt.Errorf("user %q needs an email and a password", su.Name)
		}
		role := models.Role(strings.ToUpper(su.Role))
		if su.Role == "" {
			role = models.RoleMember
		}
		if !role.Valid() {
			return nil, fmt.Errorf("user %s: unknown role %q", su.Email, su.Role)
		}

		hash, err := auth.HashPassword(su.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", su.Email, err)
		}

		u := &models.User{Name: su.Name, Email: su.Email, PasswordHash: hash, Role: role}
		if err := db.CreateOrUpdateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("save %s: %w", su.Email, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func insertSample(ctx context.Context, db *database.DB, users []*models.User) error {
	reporter := users[0]
	start := time.Now().UTC().AddDate(0, 0, 14).Truncate(24 * time.Hour)

	booking := &models.Booking{
		Title:          "Sample weekend",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 2),
		Status:         models.BookingPending,
		CreatedByID:    &reporter.ID,
		RequesterName:  reporter.Name,
		RequesterEmail: reporter.Email,
	}
	if err := db.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrOverlap) {
			return fmt.Errorf("sample booking overlaps an existing one: %w", err)
		}
		return fmt.Errorf("create sample booking: %w", err)
	}

	open := models.IssueOpen
	issue := &models.Issue{
		Title:        "Check smoke alarms",
		Description:  "Test every smoke alarm and replace batteries where needed.",
		Priority:     models.PriorityMedium,
		Status:       models.IssueOpen,
		ReportedByID: reporter.ID,
	}
	first := &models.IssueUpdate{AuthorID: reporter.ID, Notes: models.IssueCreatedNote, Status: &open}
	if err := db.CreateIssueWithLog(ctx, issue, first); err != nil {
		return fmt.Errorf("create sample issue: %w", err)
	}
	return nil
}
