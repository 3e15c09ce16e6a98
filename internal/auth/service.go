package auth

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"casgate/internal/constants"
	"casgate/internal/ident"
	"casgate/internal/logger"
)

// Service owns the delegate lifecycle: realm bootstrap, child creation,
// token rotation, and revocation. Creation is append-only with
// independently generated identifiers, so concurrent child creation under
// one parent needs no locking.
type Service struct {
	store          *Store
	accessTokenTTL time.Duration
	logger         *logger.Logger
}

// NewService creates the delegate lifecycle service.
func NewService(store *Store, accessTokenTTL time.Duration, log *logger.Logger) *Service {
	return &Service{store: store, accessTokenTTL: accessTokenTTL, logger: log}
}

// Store exposes the backing store for middleware wiring.
func (s *Service) Store() *Store {
	return s.store
}

// BootstrapRoot returns the realm's root delegate, creating it on first
// use. Re-bootstrapping an existing root rotates its tokens, so the
// verified owner can always recover credentials; previously issued bytes
// stop verifying immediately.
func (s *Service) BootstrapRoot(realm string) (*Delegate, *IssuedTokens, error) {
	existing, err := s.store.GetRootByRealm(realm)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		if existing.IsRevoked {
			return nil, nil, ErrDelegateRevoked
		}
		tokens, err := s.rotate(existing, true)
		if err != nil {
			return nil, nil, err
		}
		return existing, tokens, nil
	}

	root := &Delegate{
		DelegateID:     ident.NewDelegateID(),
		Realm:          realm,
		Chain:          nil, // set below from the generated id
		Depth:          constants.RootDepth,
		CanUpload:      true,
		CanManageDepot: true,
		ScopeRoots:     []string{},
		CreatedAt:      time.Now().UnixMilli(),
	}
	root.Chain = BuildRootChain(root.DelegateID)

	tokens, rtHash, atHash, atExpiresAt, err := s.issueTokens(root, true)
	if err != nil {
		return nil, nil, err
	}
	root.CurrentRTHash = rtHash
	root.CurrentATHash = atHash
	root.ATExpiresAt = atExpiresAt

	if err := s.store.Create(root); err != nil {
		return nil, nil, err
	}
	s.logger.Info("auth: bootstrapped root delegate %s for realm %s", root.DelegateID, realm)
	return root, tokens, nil
}

// CreateChild creates a new delegate under the given parent after the
// full creation-time validation (depth, permissions, expiry, depots).
func (s *Service) CreateChild(parent *Delegate, input *CreateDelegateInput, userIssued bool) (*Delegate, *IssuedTokens, error) {
	if parent.IsRevoked {
		return nil, nil, ErrDelegateRevoked
	}

	var parentDepots map[string]bool
	if parent.DelegatedDepots != nil {
		parentDepots = make(map[string]bool, len(parent.DelegatedDepots))
		for _, depotID := range parent.DelegatedDepots {
			parentDepots[depotID] = true
		}
	}
	if authErr := ValidateCreateDelegate(parent, input, parentDepots); authErr != nil {
		return nil, nil, authErr
	}

	child := &Delegate{
		DelegateID:      ident.NewDelegateID(),
		Realm:           parent.Realm,
		ParentID:        &parent.DelegateID,
		Depth:           parent.Depth + 1,
		CanUpload:       input.CanUpload,
		CanManageDepot:  input.CanManageDepot,
		DelegatedDepots: input.DelegatedDepots,
		ScopeRoots:      input.ScopeRoots,
		ExpiresAt:       input.ExpiresAt,
		CreatedAt:       time.Now().UnixMilli(),
	}
	if child.ScopeRoots == nil {
		child.ScopeRoots = []string{}
	}
	child.Chain = BuildChain(parent.Chain, child.DelegateID)
	if !IsChainValid(child.Chain) || !IsDirectChildChain(parent.Chain, child.Chain) {
		return nil, nil, fmt.Errorf("constructed invalid chain for delegate %s", child.DelegateID)
	}

	tokens, rtHash, atHash, atExpiresAt, err := s.issueTokens(child, userIssued)
	if err != nil {
		return nil, nil, err
	}
	child.CurrentRTHash = rtHash
	child.CurrentATHash = atHash
	child.ATExpiresAt = atExpiresAt

	if err := s.store.Create(child); err != nil {
		return nil, nil, err
	}
	s.logger.Info("auth: delegate %s created under %s (depth %d)", child.DelegateID, parent.DelegateID, child.Depth)
	return child, tokens, nil
}

// Refresh verifies a presented refresh token and rotates both token
// roles, returning the fresh pair.
func (s *Service) Refresh(refreshTokenB64 string) (*Delegate, *IssuedTokens, error) {
	tokenBytes, err := base64.StdEncoding.DecodeString(refreshTokenB64)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	decoded, err := DecodeToken(tokenBytes)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	if decoded.TTL != 0 {
		// An access token presented as a refresh token.
		return nil, nil, ErrTokenInvalid
	}

	delegate, err := s.store.GetByIDHash(hex.EncodeToString(decoded.IssuerHash))
	if err != nil {
		return nil, nil, err
	}
	if delegate == nil {
		return nil, nil, ErrDelegateNotFound
	}
	if delegate.IsRevoked {
		return nil, nil, ErrDelegateRevoked
	}
	if delegate.Expired(time.Now().UnixMilli()) {
		return nil, nil, ErrDelegateExpired
	}
	if !ConstantTimeEqualHex(HashTokenBytes(tokenBytes), delegate.CurrentRTHash) {
		return nil, nil, ErrTokenInvalid
	}

	tokens, err := s.rotate(delegate, decoded.IsUserIssued)
	if err != nil {
		return nil, nil, err
	}
	return delegate, tokens, nil
}

// RevokeAs revokes a target delegate on behalf of an acting context. Only
// an ancestor of the target (itself included) may revoke it. Revocation
// is an idempotent single-flag flip.
func (s *Service) RevokeAs(actor *Context, targetID string) (*Delegate, error) {
	target, err := s.store.Get(actor.Realm, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &Error{Code: constants.ErrCodeDelegateNotFound, Status: http.StatusNotFound}
	}
	if !IsAncestor(actor.DelegateID, target.Chain) {
		return nil, ErrForbidden
	}
	if err := s.store.Revoke(target.DelegateID); err != nil {
		return nil, err
	}
	s.logger.Info("auth: delegate %s revoked by %s", target.DelegateID, actor.DelegateID)
	return target, nil
}

// rotate issues a fresh token pair and records the new hashes.
func (s *Service) rotate(d *Delegate, userIssued bool) (*IssuedTokens, error) {
	tokens, rtHash, atHash, atExpiresAt, err := s.issueTokens(d, userIssued)
	if err != nil {
		return nil, err
	}
	if err := s.store.RotateTokens(d.DelegateID, rtHash, atHash, atExpiresAt); err != nil {
		return nil, err
	}
	d.CurrentRTHash = rtHash
	d.CurrentATHash = atHash
	d.ATExpiresAt = atExpiresAt
	return tokens, nil
}

// issueTokens generates the refresh/access token pair for a delegate. The
// refresh token carries no TTL; the access token expires after the
// configured lifetime.
func (s *Service) issueTokens(d *Delegate, userIssued bool) (tokens *IssuedTokens, rtHash, atHash string, atExpiresAt int64, err error) {
	base := TokenOptions{
		IsDelegate:     !d.IsRoot(),
		IsUserIssued:   userIssued,
		CanUpload:      d.CanUpload,
		CanManageDepot: d.CanManageDepot,
		Depth:          d.Depth,
		IssuerHash:     ComputeDelegateIDHash(d.DelegateID),
		RealmHash:      ComputeRealmHash(d.Realm),
		ScopeHash:      ComputeScopeHash(d.ScopeRoots),
	}

	rtOpts := base // TTL 0
	rtBytes, err := GenerateToken(rtOpts)
	if err != nil {
		return nil, "", "", 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	atExpiresAt = time.Now().Add(s.accessTokenTTL).UnixMilli()
	atOpts := base
	atOpts.TTL = uint64(atExpiresAt)
	atBytes, err := GenerateToken(atOpts)
	if err != nil {
		return nil, "", "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	tokens = &IssuedTokens{
		RefreshToken:   base64.StdEncoding.EncodeToString(rtBytes),
		AccessToken:    base64.StdEncoding.EncodeToString(atBytes),
		RefreshTokenID: ComputeTokenID(rtBytes),
		AccessTokenID:  ComputeTokenID(atBytes),
		ATExpiresAt:    atExpiresAt,
	}
	return tokens, HashTokenBytes(rtBytes), HashTokenBytes(atBytes), atExpiresAt, nil
}
