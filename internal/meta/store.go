package meta

import (
	"context"
	"errors"
	"fmt"

	"stockline/internal/api"
	"stockline/internal/domain"
	"stockline/internal/session"
)

// APIStore resolves item metadata from the backend items endpoint.
type APIStore struct {
	Client   *api.Client
	Sessions *session.Manager
}

func (s *APIStore) ItemMeta(ctx context.Context, itemID string) (domain.MetaInfo, bool, error) {
	sess := s.Sessions.Current()
	if sess.Status != session.StatusSignedIn {
		return domain.MetaInfo{}, false, &api.AuthError{State: string(sess.Status)}
	}

	var info domain.MetaInfo
	path := fmt.Sprintf("/api/mobile/items/%s", itemID)
	if err := s.Client.GetJSON(ctx, path, nil, sess.Token, &info); err != nil {
		var rej *api.ServerRejection
		if errors.As(err, &rej) && rej.Status == 404 {
			return domain.MetaInfo{}, false, nil
		}
		return domain.MetaInfo{}, false, err
	}
	return info, true, nil
}
