package rtc

import (
	"context"
	"fmt"

	"github.com/go-demo/meeting/internal/config"
	"github.com/livekit/protocol/auth"
	lkproto "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// recordingFilepath is expanded by the egress service per recording
const recordingFilepath = "{room_name}/{time}.mp4"

// Client talks to the LiveKit deployment: it mints room join tokens
// locally and drives recording egress remotely. Recordings are uploaded
// straight to S3-compatible storage by the egress service; this backend
// never touches the media.
type Client struct {
	cfg    *config.LiveKitConfig
	s3     *config.S3Config
	egress *lksdk.EgressClient
	logger *zap.Logger
}

func NewClient(cfg *config.LiveKitConfig, s3 *config.S3Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		s3:     s3,
		egress: lksdk.NewEgressClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		logger: logger,
	}
}

// RoomJoinToken mints a short-lived access token granting roomJoin on
// the given room for the given identity.
func (c *Client) RoomJoinToken(identity, roomName string) (string, error) {
	at := auth.NewAccessToken(c.cfg.APIKey, c.cfg.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(c.cfg.TokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to sign livekit token: %w", err)
	}
	return token, nil
}

// StartRoomRecording starts a room-composite egress (grid layout, MP4)
// uploading to the configured S3 bucket, and returns the egress id.
func (c *Client) StartRoomRecording(ctx context.Context, roomName string) (string, error) {
	req := &lkproto.RoomCompositeEgressRequest{
		RoomName: roomName,
		Layout:   "grid",
		FileOutputs: []*lkproto.EncodedFileOutput{
			{
				FileType: lkproto.EncodedFileType_MP4,
				Filepath: recordingFilepath,
				Output: &lkproto.EncodedFileOutput_S3{
					S3: &lkproto.S3Upload{
						AccessKey:      c.s3.AccessKey,
						Secret:         c.s3.Secret,
						Endpoint:       c.s3.Endpoint,
						Bucket:         c.s3.Bucket,
						ForcePathStyle: true,
					},
				},
			},
		},
	}

	info, err := c.egress.StartRoomCompositeEgress(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to start room composite egress: %w", err)
	}

	c.logger.Info("Room recording started",
		zap.String("room", roomName),
		zap.String("egress_id", info.EgressId),
	)

	return info.EgressId, nil
}

// StopRecording stops a running egress and returns the filenames the
// egress service uploaded.
func (c *Client) StopRecording(ctx context.Context, egressID string) ([]string, error) {
	info, err := c.egress.StopEgress(ctx, &lkproto.StopEgressRequest{
		EgressId: egressID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stop egress %s: %w", egressID, err)
	}

	var files []string
	for _, result := range info.GetFileResults() {
		files = append(files, result.GetFilename())
	}

	c.logger.Info("Room recording stopped",
		zap.String("egress_id", egressID),
		zap.Strings("files", files),
	)

	return files, nil
}
