package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"puzzle-pals-server/store"
)

// Config holds all configurable server parameters.
type Config struct {
	Port             int `json:"port"`
	RequestTimeoutMS int `json:"request_timeout_ms"`

	// StoreBackend selects the store implementation: "dynamo", "postgres"
	// or "memory".
	StoreBackend string `json:"store_backend"`

	// DynamoDB settings. Endpoint and the static credentials are only for
	// local development against DynamoDB Local.
	AWSRegion    string `json:"aws_region"`
	AWSEndpoint  string `json:"aws_endpoint"`
	AWSAccessKey string `json:"aws_access_key"`
	AWSSecretKey string `json:"aws_secret_key"`

	// Postgres settings.
	DatabaseURL string `json:"database_url"`

	// Table names.
	TableUsers     string `json:"table_users"`
	TableFriends   string `json:"table_friends"`
	TableResults   string `json:"table_results"`
	TableResultLog string `json:"table_result_log"`
	TableReference string `json:"table_reference"`
	SearchIndex    string `json:"search_index"`

	// Firebase auth. ProjectID drives the expected issuer/audience; the
	// test token, when set, bypasses verification for API tooling.
	FirebaseProjectID string `json:"firebase_project_id"`
	TestIDToken       string `json:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Port:             8080,
		RequestTimeoutMS: 10000,
		StoreBackend:     "dynamo",
		AWSRegion:        "ap-southeast-2",
		TableUsers:       "pp-user",
		TableFriends:     "pp-user-friends",
		TableResults:     "pp-user-result",
		TableResultLog:   "pp-user-result-log",
		TableReference:   "pp-reference",
		SearchIndex:      "SearchPK-SearchSK-index",
	}
}

// Load reads configuration from an optional config.json file, then applies
// environment variable overrides. Fields not set in either source retain
// their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.Port, "PORT")
	overrideInt(&cfg.RequestTimeoutMS, "REQUEST_TIMEOUT_MS")
	overrideString(&cfg.StoreBackend, "STORE_BACKEND")
	overrideString(&cfg.AWSRegion, "AWS_REGION")
	overrideString(&cfg.AWSEndpoint, "AWS_ENDPOINT")
	overrideString(&cfg.AWSAccessKey, "AWS_ACCESS_KEY_ID")
	overrideString(&cfg.AWSSecretKey, "AWS_SECRET_ACCESS_KEY")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.TableUsers, "TABLE_USERS")
	overrideString(&cfg.TableFriends, "TABLE_FRIENDS")
	overrideString(&cfg.TableResults, "TABLE_RESULTS")
	overrideString(&cfg.TableResultLog, "TABLE_RESULT_LOG")
	overrideString(&cfg.TableReference, "TABLE_REFERENCE")
	overrideString(&cfg.SearchIndex, "SEARCH_INDEX")
	overrideString(&cfg.FirebaseProjectID, "FIREBASE_PROJECT_ID")
	overrideString(&cfg.TestIDToken, "FIREBASE_TEST_IDTOKEN")

	return cfg
}

// Tables builds the logical table descriptors the services are wired with.
func (c *Config) Tables() store.Tables {
	return store.Tables{
		Users:     store.Table{Name: c.TableUsers, PartitionKey: "UID"},
		Friends:   store.Table{Name: c.TableFriends, PartitionKey: "UID", SortKey: "UIDF"},
		Results:   store.Table{Name: c.TableResults, PartitionKey: "UID", SortKey: "PID"},
		ResultLog: store.Table{Name: c.TableResultLog, PartitionKey: "UIDPID", SortKey: "DateTimeStartOnDevice"},
		Reference: store.Table{Name: c.TableReference, PartitionKey: "PKID", SortKey: "SKID"},
		UserSearch: store.Index{
			Name:         c.SearchIndex,
			PartitionKey: "SearchPK",
			SortKey:      "SearchSK",
		},
	}
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
