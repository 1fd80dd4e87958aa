package trust

import (
	"context"
	"errors"
	"fmt"

	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"go.uber.org/zap"
)

var ErrHandshakeReplayed = errors.New("handshake already completed for this place")

// Handshake pairs a cashless node with its provisioned place. The caller
// must present the temporary bootstrap token, must be a registered
// administrator of the place, and must prove possession of the submitted
// node key by signing the request body with it. On success the bootstrap
// token is burned and replaced by a permanent place-scoped one returned in
// the bundle, so a replay of the same bootstrap token fails authentication.
func (s *Service) Handshake(ctx context.Context, bootstrapKey *models.APIKey, req *models.HandshakeRequest, body []byte, signatureB64 string) (*models.HandshakeBundle, error) {
	if !IsTemporary(bootstrapKey) {
		return nil, fmt.Errorf("token %s is not a bootstrap token: %w", bootstrapKey.Name, ErrUnauthenticated)
	}
	if bootstrapKey.PlaceId != req.PlaceId {
		return nil, fmt.Errorf("token is bound to another place: %w", ErrUnauthenticated)
	}
	if req.NodeURL == "" {
		return nil, store.Validation("cashless_server_url", "node url is required")
	}
	if req.NodePublicPEM == "" {
		return nil, store.Validation("cashless_rsa_pub_key", "node public key is required")
	}
	nodePub, err := keys.ParsePublicKey(req.NodePublicPEM)
	if err != nil {
		return nil, store.Validation("cashless_rsa_pub_key", "node public key is not a valid RSA PEM")
	}

	admin, err := s.store.IsPlaceAdmin(ctx, req.PlaceId, bootstrapKey.UserEmail)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, fmt.Errorf("caller is not an administrator of place %s: %w", req.PlaceId, ErrUnauthenticated)
	}

	// The node must prove it holds the private half of the key it submits.
	if signatureB64 == "" {
		return nil, fmt.Errorf("handshake request is unsigned: %w", keys.ErrBadSignature)
	}
	if err := keys.Verify(nodePub, body, signatureB64); err != nil {
		return nil, err
	}

	place, err := s.store.GetPlace(ctx, req.PlaceId)
	if err != nil {
		return nil, err
	}
	if place.NodeURL != "" {
		return nil, fmt.Errorf("place %s: %w", place.Id, ErrHandshakeReplayed)
	}

	adminSecretEnc := ""
	if req.AdminSecret != "" {
		adminSecretEnc, err = s.cipher.Encrypt(req.AdminSecret)
		if err != nil {
			return nil, fmt.Errorf("unable to protect node admin secret: %w", err)
		}
	}

	if err := s.store.CommitHandshake(ctx, place.Id, req.NodeURL, req.NodePublicPEM, adminSecretEnc); err != nil {
		return nil, err
	}

	permanentSecret, _, err := s.IssueKey(ctx, place.Name, place.Id, bootstrapKey.UserEmail, models.ScopePlace)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteAPIKey(ctx, bootstrapKey.Id); err != nil {
		return nil, fmt.Errorf("unable to burn bootstrap token: %w", err)
	}

	zap.L().Info("Handshake completed",
		zap.String("place_id", place.Id),
		zap.String("node_url", req.NodeURL))

	return &models.HandshakeBundle{
		PlaceId:        place.Id,
		PlaceWalletId:  place.WalletId,
		PermanentToken: permanentSecret,
	}, nil
}
