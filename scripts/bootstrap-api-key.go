// Command bootstrap-api-key creates a key-only user and prints its API key.
//
//	go run scripts/bootstrap-api-key.go -email dev@example.com -format json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
	"github.com/pingpanda/pingpanda/internal/service"
)

type output struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	Plan       model.Plan `json:"plan"`
	QuotaLimit int        `json:"quota_limit"`
	Key        string     `json:"key"`
	KeyPrefix  string     `json:"key_prefix"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "dev@pingpanda.local", "User email")
		planInput   = flag.String("plan", string(model.PlanFree), "Plan: free or pro")
		freeQuota   = flag.Int("free-quota", 100, "Monthly event quota for the free plan")
		proQuota    = flag.Int("pro-quota", 1000, "Monthly event quota for the pro plan")
		timezone    = flag.String("timezone", "UTC", "Reference time zone for the quota period")
		keyEnv      = flag.String("env", auth.EnvTest, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}

	plan := model.Plan(strings.ToLower(*planInput))
	if !plan.IsValid() {
		fail("invalid plan: " + *planInput)
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		fail("load timezone: " + err.Error())
	}
	clock := service.NewClock(loc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fail("connect database: " + err.Error())
	}
	defer repo.Close()

	generated, err := auth.NewKeyGenerator(*keyEnv).Generate()
	if err != nil {
		fail("generate api key: " + err.Error())
	}

	limits := service.QuotaLimits{Free: *freeQuota, Pro: *proQuota}
	user := &model.User{
		ID:               ulid.Make().String(),
		Email:            *email,
		APIKeyPrefix:     generated.Prefix,
		APIKeyHash:       generated.Hash,
		Plan:             plan,
		QuotaLimit:       limits.For(plan),
		QuotaPeriodStart: clock.QuotaPeriodStart(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		fail("create user: " + err.Error())
	}

	out := output{
		UserID:     user.ID,
		Email:      user.Email,
		Plan:       user.Plan,
		QuotaLimit: user.QuotaLimit,
		Key:        generated.Plaintext,
		KeyPrefix:  generated.Prefix,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
