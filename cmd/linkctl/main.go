// main.go - Admin control tool for linkpulse
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"linkpulse/internal"
	"linkpulse/internal/analytics"
	"linkpulse/internal/clicks"
	"linkpulse/internal/links"
	"linkpulse/internal/seeder"
	"linkpulse/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&CreateLinkCommand{},
	&SeedCommand{},
	&ReportCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	_ = godotenv.Load()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
			app.Cache.Close()
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// CreateLinkCommand stores a new short link
type CreateLinkCommand struct{}

func (c *CreateLinkCommand) Name() string { return "create-link" }
func (c *CreateLinkCommand) Description() string {
	return "Creates a short link: create-link <code> <url> [user-id]"
}

func (c *CreateLinkCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <code> <url> [user-id]", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	link := &links.Link{ShortCode: args[0], URL: args[1]}
	if len(args) >= 3 {
		id, err := parseUserID(args[2])
		if err != nil {
			return err
		}
		link.UserID = &id
	}

	if err := links.CreateLink(app.DBManager.GetConnection(), app.Logger, link); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	fmt.Printf("Created /%s -> %s (id %d)\n", link.ShortCode, link.URL, link.ID)
	return nil
}

// SeedCommand fills a link with synthetic clicks
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds a link with sample clicks" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("clicks", 1000, "number of clicks to generate")
	code := fs.String("code", "demo", "short code to seed (created if missing)")
	url := fs.String("url", "https://example.com", "destination used when the link is created")
	user := fs.Uint("user", 1, "owner of a newly created link")
	days := fs.Int("days", 30, "spread clicks over this many days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, app.Logger, *count)
	se.Days = *days
	stored, err := se.SeedLink(ctx, *code, *url, uint(*user))
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d clicks on /%s\n", stored, *code)
	return nil
}

// ReportCommand prints a link's analytics as JSON
type ReportCommand struct{}

func (c *ReportCommand) Name() string { return "report" }
func (c *ReportCommand) Description() string {
	return "Prints link analytics as JSON: report <code> [days]"
}

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <code> [days]", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	days := 30
	if len(args) >= 2 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid days %q", args[1])
		}
		if err := timeframe.ValidateDays(parsed, 1, 365); err != nil {
			return err
		}
		days = parsed
	}

	db := app.DBManager.GetConnection()
	link, err := links.GetByShortCode(db, args[0])
	if err != nil {
		return err
	}

	report, err := analytics.NewReporter(db, app.Logger).Overview(ctx, link, days)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var linkCount, clickCount int64
	if err := db.Model(&links.Link{}).Count(&linkCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&clicks.ClickEvent{}).Count(&clickCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Links: %d", linkCount)
	log.Printf("- Click events: %d", clickCount)

	if app.Cache == nil {
		log.Println("- Link cache: Disabled")
	} else if err := app.Cache.Ping(ctx); err != nil {
		log.Printf("- Link cache: Unreachable (%v)", err)
	} else {
		log.Println("- Link cache: Connected")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: linkctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
