// Package users manages profile records and the prefix search over them.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/store"
	"puzzle-pals-server/timeutil"
)

// searchLimit caps search responses; the client renders at most one page.
const searchLimit = 10

// Profile is the public slice of a user record returned by Search.
type Profile struct {
	UID           string `json:"UID"`
	UserFirstName string `json:"UserFirstName"`
	UserLastName  string `json:"UserLastName"`
	UserAvatar    string `json:"UserAvatar"`
}

// Service manages user profile records.
type Service struct {
	store  store.Store
	tables store.Tables
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, tables store.Tables) *Service {
	return &Service{
		store:  st,
		tables: tables,
		log:    slog.Default().With("tag", "users"),
		now:    time.Now,
	}
}

// Create writes a signup stub for uid unless a record already exists.
// Repeat calls are harmless; the existing profile is never overwritten.
func (s *Service) Create(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	err := s.store.PutIfAbsent(ctx, s.tables.Users, store.Item{
		"UID":             uid,
		"SignupCompleted": "false",
		"DateTimeCreated": timeutil.AESTTimestamp(s.now()),
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "signup stub created", "uid", uid)
	return nil
}

// Get reads one profile, optionally projected to fields.
func (s *Service) Get(ctx context.Context, uid string, fields ...string) (store.Item, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	return s.store.Get(ctx, s.tables.Users, store.Key{Partition: uid}, fields...)
}

// Exists reports whether a profile record exists for uid.
func (s *Service) Exists(ctx context.Context, uid string) (bool, error) {
	_, err := s.Get(ctx, uid, "UID")
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update sets profile fields on an existing record. When both names are
// present after the update, the search keys are derived so the profile
// becomes findable: SearchPK is the first three letters of the first name
// and SearchSK the full "first last", both lowercased.
func (s *Service) Update(ctx context.Context, uid string, fields map[string]string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", apperrors.ErrInvalidInput)
	}
	set := store.Item{}
	for k, v := range fields {
		if k == "UID" || k == "SearchPK" || k == "SearchSK" {
			return fmt.Errorf("%w: field %s is not updatable", apperrors.ErrInvalidInput, k)
		}
		set[k] = v
	}

	first, last := fields["UserFirstName"], fields["UserLastName"]
	if first == "" || last == "" {
		// A partial update may still complete the name pair.
		current, err := s.Get(ctx, uid, "UserFirstName", "UserLastName")
		if err != nil {
			return err
		}
		if first == "" {
			first = current["UserFirstName"]
		}
		if last == "" {
			last = current["UserLastName"]
		}
	}
	if pk, sk, ok := searchKeys(first, last); ok {
		set["SearchPK"] = pk
		set["SearchSK"] = sk
	}

	return s.store.Update(ctx, s.tables.Users, store.Key{Partition: uid}, set)
}

// Search finds profiles whose lowercased full name starts with query,
// using the three-letter prefix partition of the search index.
func (s *Service) Search(ctx context.Context, query string) ([]Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if len(normalized) < 3 {
		return nil, fmt.Errorf("%w: search needs at least 3 characters", apperrors.ErrInvalidInput)
	}
	items, err := s.store.Query(ctx, s.tables.Users, store.Query{
		Partition: normalized[:3],
		Sort:      store.SortBeginsWith,
		SortValue: normalized,
		Fields:    []string{"UID", "UserFirstName", "UserLastName", "UserAvatar"},
		Index:     &s.tables.UserSearch,
		Limit:     searchLimit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Profile, len(items))
	for i, item := range items {
		out[i] = Profile{
			UID:           item["UID"],
			UserFirstName: item["UserFirstName"],
			UserLastName:  item["UserLastName"],
			UserAvatar:    item["UserAvatar"],
		}
	}
	return out, nil
}

// searchKeys derives the search index keys from a name pair. Both names
// must be present. The partition is the first three letters of the same
// lowercased "first last" string the sort key holds, so any query prefix
// of at least three characters lands in the right partition.
func searchKeys(first, last string) (pk, sk string, ok bool) {
	first = strings.ToLower(strings.TrimSpace(first))
	last = strings.ToLower(strings.TrimSpace(last))
	if first == "" || last == "" {
		return "", "", false
	}
	sk = first + " " + last
	return sk[:3], sk, true
}
