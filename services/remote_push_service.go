package services

import (
	"context"
	"fmt"

	"training-management-api/config"

	"gorm.io/gorm"
)

// RemotePushService sends a single local entity back to the remote system on
// an explicit admin action. This is not bidirectional sync: nothing here runs
// automatically, and the remote stays authoritative for its own fields.
type RemotePushService struct {
	db     *gorm.DB
	client *RemoteClient
}

func NewRemotePushService(db *gorm.DB, client *RemoteClient) *RemotePushService {
	if db == nil {
		db = config.DB
	}
	if client == nil {
		client = NewRemoteClient(nil, nil)
	}
	return &RemotePushService{db: db, client: client}
}

// PushToRemote maps the local entity to the remote JSON shape and PUTs it when
// a linkage exists, or POSTs a new remote record otherwise.
func (s *RemotePushService) PushToRemote(ctx context.Context, entityType string, internalID uint) ([]byte, error) {
	adapter, err := adapterFor(entityType)
	if err != nil {
		return nil, err
	}

	externalID, payload, err := adapter.buildPush(s.db, internalID)
	if err != nil {
		return nil, err
	}

	if externalID == "" {
		return s.client.Post(ctx, adapter.listPath, payload)
	}
	return s.client.Put(ctx, fmt.Sprintf("%s/%s", adapter.listPath, externalID), payload)
}
