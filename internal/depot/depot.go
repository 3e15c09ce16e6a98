// Package depot manages named collections whose published versions pin
// DAG roots, plus the per-delegate access grants depot proofs consult.
package depot

import (
	"net/http"

	"github.com/google/uuid"

	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/ident"
	"casgate/internal/logger"
)

const depotIDPrefix = "dpt_"

// ErrDepotNotFound is returned when a named depot does not exist in the
// acting realm.
var ErrDepotNotFound = &auth.Error{Code: constants.ErrCodeNotFound, Status: http.StatusNotFound}

// NewDepotID generates a fresh depot id: dpt_ plus 26 base32 chars of a
// random 128-bit value.
func NewDepotID() string {
	id := uuid.New()
	return depotIDPrefix + ident.Encode(id[:])
}

// Depot is one named collection.
type Depot struct {
	Realm     string `json:"realm"`
	DepotID   string `json:"depot_id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"` // unix ms
}

// Version is one immutable published version of a depot.
type Version struct {
	Realm       string `json:"realm"`
	DepotID     string `json:"depot_id"`
	Version     int64  `json:"version"`
	RootHash    string `json:"root_hash"`
	PublishedBy string `json:"published_by"`
	PublishedAt int64  `json:"published_at"` // unix ms
}

// Service wraps the store with capability checks: management operations
// require the can_manage_depot permission, and a delegate restricted to a
// depot subset can only touch depots inside it.
type Service struct {
	store  *Store
	logger *logger.Logger
}

// NewService creates the depot service.
func NewService(store *Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Store exposes the backing store for proof-validator wiring.
func (s *Service) Store() *Store {
	return s.store
}

// authorizeManage checks the acting context may manage the given depot.
func authorizeManage(capCtx *auth.Context, depotID string) *auth.Error {
	if !capCtx.CanManageDepot {
		return auth.ErrForbidden
	}
	restricted := capCtx.Delegate.DelegatedDepots
	if restricted == nil {
		return nil
	}
	for _, id := range restricted {
		if id == depotID {
			return nil
		}
	}
	return auth.ErrDepotAccessDenied
}

// Create makes a new depot owned by the acting delegate.
func (s *Service) Create(capCtx *auth.Context, name string) (*Depot, error) {
	if !capCtx.CanManageDepot {
		return nil, auth.ErrForbidden
	}
	// A depot-restricted delegate cannot mint depots outside its subset,
	// and a fresh id is never inside it.
	if capCtx.Delegate.DelegatedDepots != nil {
		return nil, auth.ErrForbidden
	}

	d, err := s.store.Create(capCtx.Realm, NewDepotID(), name, capCtx.DelegateID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("depot: %s created by %s in realm %s", d.DepotID, capCtx.DelegateID, capCtx.Realm)
	return d, nil
}

// Publish pins a DAG root as the depot's next version.
func (s *Service) Publish(capCtx *auth.Context, depotID, rootHash string) (*Version, error) {
	if authErr := authorizeManage(capCtx, depotID); authErr != nil {
		return nil, authErr
	}
	existing, err := s.store.Get(capCtx.Realm, depotID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrDepotNotFound
	}

	v, err := s.store.PublishVersion(capCtx.Realm, depotID, rootHash, capCtx.DelegateID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("depot: %s version %d published by %s", depotID, v.Version, capCtx.DelegateID)
	return v, nil
}

// Grant gives another delegate proof-level access to the depot.
func (s *Service) Grant(capCtx *auth.Context, depotID, delegateID string) error {
	if authErr := authorizeManage(capCtx, depotID); authErr != nil {
		return authErr
	}
	existing, err := s.store.Get(capCtx.Realm, depotID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrDepotNotFound
	}

	if err := s.store.Grant(depotID, delegateID, capCtx.DelegateID); err != nil {
		return err
	}
	s.logger.Info("depot: %s access granted to %s by %s", depotID, delegateID, capCtx.DelegateID)
	return nil
}
