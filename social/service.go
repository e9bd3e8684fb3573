// Package social owns the friend graph. Every relationship between two
// users is a pair of mirrored edge records, (A,B) and (B,A), and this
// package is the only writer of those records: all mutations go through the
// store's transactional write so the pair is created, confirmed, or removed
// together or not at all.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/store"
	"puzzle-pals-server/timeutil"
)

// Relationship statuses as stored on each edge record. A request from A to
// B writes Waiting on A's edge (A sent it) and Pending on B's edge (B has
// to act on it); acceptance moves both edges to Confirmed.
const (
	StatusWaiting   = "Waiting"
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
)

// StatusCode orders statuses for the friend list: inbound requests first,
// then sent requests, then confirmed friends.
func StatusCode(status string) int {
	switch status {
	case StatusPending:
		return 1
	case StatusWaiting:
		return 2
	case StatusConfirmed:
		return 3
	default:
		return 0
	}
}

// Edge is one side of a relationship as seen from its owner's partition.
type Edge struct {
	UIDF   string
	Status string
}

// FriendView is one row of the friend list response.
type FriendView struct {
	UID                 string `json:"UID"`
	UIDF                string `json:"UIDF"`
	Status              string `json:"Status"`
	StatusCode          int    `json:"StatusCode"`
	UserFirstName       string `json:"UserFirstName"`
	UserLastName        string `json:"UserLastName"`
	UserLocationCountry string `json:"UserLocationCountry"`
	UserAvatar          string `json:"UserAvatar"`
}

// Service is the friend graph manager.
type Service struct {
	store  store.Store
	tables store.Tables
	log    *slog.Logger
	now    func() time.Time
}

// NewService wires the friend graph manager to a store.
func NewService(st store.Store, tables store.Tables) *Service {
	return &Service{
		store:  st,
		tables: tables,
		log:    slog.Default().With("tag", "social"),
		now:    time.Now,
	}
}

func validatePair(uid, uidf string) error {
	if uid == "" || uidf == "" {
		return fmt.Errorf("%w: both user ids are required", apperrors.ErrInvalidInput)
	}
	if uid == uidf {
		return fmt.Errorf("%w: cannot friend yourself", apperrors.ErrInvalidInput)
	}
	return nil
}

// Request sends a friend request from uid to uidf: both edge records are
// created in one transaction, each conditioned on not existing yet, so a
// duplicate request (either direction) fails with ErrConflict and writes
// nothing.
func (s *Service) Request(ctx context.Context, uid, uidf string) error {
	if err := validatePair(uid, uidf); err != nil {
		return err
	}
	created := timeutil.AESTTimestamp(s.now())

	err := s.store.TransactWrite(ctx,
		store.TransactOp{
			Kind:  store.TransactPut,
			Table: s.tables.Friends,
			Item: store.Item{
				"UID":             uid,
				"UIDF":            uidf,
				"Status":          StatusWaiting,
				"DateTimeCreated": created,
			},
			Precondition: store.PrecondNotExists,
		},
		store.TransactOp{
			Kind:  store.TransactPut,
			Table: s.tables.Friends,
			Item: store.Item{
				"UID":             uidf,
				"UIDF":            uid,
				"Status":          StatusPending,
				"DateTimeCreated": created,
			},
			Precondition: store.PrecondNotExists,
		},
	)
	if err != nil {
		return fmt.Errorf("friend request %s->%s: %w", uid, uidf, err)
	}
	s.log.InfoContext(ctx, "friend request sent", "uid", uid, "uidf", uidf)
	return nil
}

// Accept confirms the request from uidf that uid received: both edges move
// to Confirmed in one transaction, each conditioned on existing. A missing
// pair means the request was already resolved or never existed, surfaced as
// ErrNotFound so callers can distinguish it from a write conflict.
func (s *Service) Accept(ctx context.Context, uid, uidf string) error {
	if err := validatePair(uid, uidf); err != nil {
		return err
	}
	confirm := store.Item{"Status": StatusConfirmed}

	err := s.store.TransactWrite(ctx,
		store.TransactOp{
			Kind:         store.TransactUpdate,
			Table:        s.tables.Friends,
			Key:          store.Key{Partition: uid, Sort: uidf},
			Item:         confirm,
			Precondition: store.PrecondExists,
		},
		store.TransactOp{
			Kind:         store.TransactUpdate,
			Table:        s.tables.Friends,
			Key:          store.Key{Partition: uidf, Sort: uid},
			Item:         confirm,
			Precondition: store.PrecondExists,
		},
	)
	if errors.Is(err, apperrors.ErrConflict) {
		return fmt.Errorf("%w: no pending request between %s and %s", apperrors.ErrNotFound, uid, uidf)
	}
	if err != nil {
		return fmt.Errorf("accept friend request %s<-%s: %w", uid, uidf, err)
	}
	s.log.InfoContext(ctx, "friend request accepted", "uid", uid, "uidf", uidf)
	return nil
}

// Remove deletes the relationship between uid and uidf: both edges are
// deleted in one transaction, each conditioned on existing, so a partial
// pair fails with ErrConflict and deletes nothing. Removal and rejection
// are the same operation.
func (s *Service) Remove(ctx context.Context, uid, uidf string) error {
	if err := validatePair(uid, uidf); err != nil {
		return err
	}

	err := s.store.TransactWrite(ctx,
		store.TransactOp{
			Kind:         store.TransactDelete,
			Table:        s.tables.Friends,
			Key:          store.Key{Partition: uid, Sort: uidf},
			Precondition: store.PrecondExists,
		},
		store.TransactOp{
			Kind:         store.TransactDelete,
			Table:        s.tables.Friends,
			Key:          store.Key{Partition: uidf, Sort: uid},
			Precondition: store.PrecondExists,
		},
	)
	if err != nil {
		return fmt.Errorf("remove friend %s-%s: %w", uid, uidf, err)
	}
	s.log.InfoContext(ctx, "friend removed", "uid", uid, "uidf", uidf)
	return nil
}

// Edges returns all of uid's edge records.
func (s *Service) Edges(ctx context.Context, uid string) ([]Edge, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	items, err := s.store.Query(ctx, s.tables.Friends, store.Query{
		Partition: uid,
		Fields:    []string{"UIDF", "Status"},
	})
	if err != nil {
		return nil, fmt.Errorf("query friends of %s: %w", uid, err)
	}
	edges := make([]Edge, 0, len(items))
	for _, item := range items {
		edges = append(edges, Edge{UIDF: item["UIDF"], Status: item["Status"]})
	}
	return edges, nil
}

// Scope resolves the leaderboard scope for uid: the confirmed friend UIDs
// plus whether uid has inbound requests awaiting a decision.
func (s *Service) Scope(ctx context.Context, uid string) (confirmed []string, hasPending bool, err error) {
	edges, err := s.Edges(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	for _, e := range edges {
		switch e.Status {
		case StatusConfirmed:
			confirmed = append(confirmed, e.UIDF)
		case StatusPending:
			hasPending = true
		}
	}
	return confirmed, hasPending, nil
}

// Confirmed returns only the confirmed friend UIDs, filtered in the store.
func (s *Service) Confirmed(ctx context.Context, uid string) ([]string, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	items, err := s.store.Query(ctx, s.tables.Friends, store.Query{
		Partition: uid,
		Filter:    map[string]string{"Status": StatusConfirmed},
		Fields:    []string{"UIDF"},
	})
	if err != nil {
		return nil, fmt.Errorf("query confirmed friends of %s: %w", uid, err)
	}
	uids := make([]string, 0, len(items))
	for _, item := range items {
		uids = append(uids, item["UIDF"])
	}
	return uids, nil
}

// List returns uid's friend list merged with profile details, sorted by
// (StatusCode, UserFirstName): inbound requests, then sent requests, then
// confirmed friends.
func (s *Service) List(ctx context.Context, uid string) ([]FriendView, error) {
	edges, err := s.Edges(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return []FriendView{}, nil
	}

	keys := make([]store.Key, len(edges))
	for i, e := range edges {
		keys[i] = store.Key{Partition: e.UIDF}
	}
	profiles, err := s.store.BatchGet(ctx, s.tables.Users, keys,
		"UID", "UserFirstName", "UserLastName", "UserLocationCountry", "UserAvatar")
	if err != nil {
		return nil, fmt.Errorf("fetch friend profiles of %s: %w", uid, err)
	}
	byUID := make(map[string]store.Item, len(profiles))
	for _, p := range profiles {
		byUID[p["UID"]] = p
	}

	views := make([]FriendView, len(edges))
	for i, e := range edges {
		p := byUID[e.UIDF]
		views[i] = FriendView{
			UID:                 uid,
			UIDF:                e.UIDF,
			Status:              e.Status,
			StatusCode:          StatusCode(e.Status),
			UserFirstName:       p["UserFirstName"],
			UserLastName:        p["UserLastName"],
			UserLocationCountry: p["UserLocationCountry"],
			UserAvatar:          p["UserAvatar"],
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].StatusCode != views[j].StatusCode {
			return views[i].StatusCode < views[j].StatusCode
		}
		return views[i].UserFirstName < views[j].UserFirstName
	})
	return views, nil
}
