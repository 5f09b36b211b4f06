package dating

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"time"

	pb "github.com/oggyb/campus-match/internal/api/datingv1"
	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/auth"
	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/match"
	"github.com/oggyb/campus-match/internal/repository"
)

// likesPageSize is the page size of the incoming-likes listings.
const likesPageSize = 5

// likesCountTTL is how long a cached incoming-likes count lives without reads.
const likesCountTTL = time.Hour

// Service implements the DatingService gRPC API.
// It validates requests, checks the caller against the token subject and
// delegates to the domain services held by AppContext.
type Service struct {
	appCtx  *app.AppContext
	swipes  *repository.SwipeRepository
	matches *repository.MatchRepository

	pb.UnimplementedDatingServiceServer
}

// NewDatingService creates a new Dating service with dependencies from AppContext.
func NewDatingService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		swipes:  repository.NewSwipeRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
	}
}

// CreateSwipe records a left or right swipe and reports whether it created
// a match.
//
// Example:
//
//	svc.CreateSwipe(ctx, &pb.CreateSwipeRequest{SwiperID: "a", SwipedID: "b", Direction: "right"})
func (s *Service) CreateSwipe(ctx context.Context, req *pb.CreateSwipeRequest) (*pb.CreateSwipeResponse, error) {
	s.log(ctx).Debug("CreateSwipe called", "swiper", req.SwiperID, "swiped", req.SwipedID, "direction", req.Direction)

	if req.SwiperID == "" || req.SwipedID == "" {
		return nil, svcErr.InvalidArgument("swiperId and swipedId are required")
	}
	if err := auth.Authorize(ctx, req.SwiperID); err != nil {
		return nil, err
	}

	res, err := s.appCtx.Matches.CreateSwipe(ctx, req.SwiperID, req.SwipedID, req.Direction)
	if err != nil {
		if !svcErr.IsAdmission(err) {
			s.log(ctx).Error("CreateSwipe failed", "swiper", req.SwiperID, "swiped", req.SwipedID, "err", err)
		}
		return nil, svcErr.Map(err)
	}

	return &pb.CreateSwipeResponse{
		Message: res.Message,
		Swipe: &pb.Swipe{
			SwiperID:      res.Swipe.OwnerID,
			SwipedID:      res.Swipe.OtherID,
			Direction:     res.Swipe.Direction,
			UnixTimestamp: res.Swipe.CreatedAt.UnixMilli(),
		},
		Match:     res.Matched,
		MatchID:   res.MatchID,
		Duplicate: res.Duplicate,
		Remaining: res.Remaining,
	}, nil
}

// CountRecentSwipes returns today's swipe usage.
func (s *Service) CountRecentSwipes(ctx context.Context, req *pb.CountRecentSwipesRequest) (*pb.CountRecentSwipesResponse, error) {
	s.log(ctx).Debug("CountRecentSwipes called", "user", req.UserID)
	if err := s.caller(ctx, req.UserID); err != nil {
		return nil, err
	}

	st, err := s.appCtx.Quota.CountRecentSwipes(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.CountRecentSwipesResponse{SwipeCount: st.SwipeCount, DailyLimit: st.DailyLimit, CanSwipe: st.CanSwipe}, nil
}

// ResolveClarity returns the asset URL and client blur for one photo.
func (s *Service) ResolveClarity(ctx context.Context, req *pb.ImageRequest) (*pb.ResolveClarityResponse, error) {
	s.log(ctx).Debug("ResolveClarity called", "viewer", req.ViewerID, "target", req.TargetUserID, "index", req.ImageIndex)
	if err := s.imageRequest(ctx, req.ViewerID, req.TargetUserID, req.ImageIndex); err != nil {
		return nil, err
	}

	c, err := s.appCtx.Disclosure.ResolveClarity(ctx, req.ViewerID, req.TargetUserID, req.ImageIndex)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.ResolveClarityResponse{
		URL:            c.URL,
		ClarityPercent: c.ClarityPercent,
		Radius:         c.Radius,
		Phase:          string(c.Phase),
		MessageCount:   c.MessageCount,
	}, nil
}

// GetBlurredImageURL returns the pre-rendered blur step for one photo.
// Before mutual consent the step never drops below the 80 rung; the finer
// steps follow the message count after consent.
func (s *Service) GetBlurredImageURL(ctx context.Context, req *pb.ImageRequest) (*pb.GetBlurredImageURLResponse, error) {
	s.log(ctx).Debug("GetBlurredImageUrl called", "viewer", req.ViewerID, "target", req.TargetUserID, "index", req.ImageIndex)
	if err := s.imageRequest(ctx, req.ViewerID, req.TargetUserID, req.ImageIndex); err != nil {
		return nil, err
	}

	img, err := s.appCtx.Disclosure.BlurredImageURL(ctx, req.ViewerID, req.TargetUserID, req.ImageIndex)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.GetBlurredImageURLResponse{URL: img.URL, BlurLevel: img.BlurLevel, MessageCount: img.MessageCount}, nil
}

// GetImages lists every photo of the target at the viewer's disclosure.
func (s *Service) GetImages(ctx context.Context, req *pb.GetImagesRequest) (*pb.GetImagesResponse, error) {
	s.log(ctx).Debug("GetImages called", "viewer", req.ViewerID, "target", req.TargetUserID)
	if err := s.imageRequest(ctx, req.ViewerID, req.TargetUserID, 0); err != nil {
		return nil, err
	}

	images, err := s.appCtx.Disclosure.Images(ctx, req.ViewerID, req.TargetUserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &pb.GetImagesResponse{Images: make([]*pb.Image, 0, len(images))}
	for _, img := range images {
		resp.Images = append(resp.Images, &pb.Image{
			URL:           img.URL,
			BlurLevel:     img.BlurLevel,
			MessageCount:  img.MessageCount,
			BothConsented: img.BothConsented,
		})
	}
	return resp, nil
}

// UploadPhoto stores a new photo and its blur ladder.
func (s *Service) UploadPhoto(ctx context.Context, req *pb.UploadPhotoRequest) (*pb.UploadPhotoResponse, error) {
	s.log(ctx).Debug("UploadPhoto called", "user", req.UserID, "bytes", len(req.Data))
	if err := s.caller(ctx, req.UserID); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, svcErr.InvalidArgument("data is required")
	}

	photo, err := s.appCtx.Uploader.Upload(ctx, req.UserID, bytes.NewReader(req.Data))
	if err != nil {
		s.log(ctx).Error("UploadPhoto failed", "user", req.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &pb.UploadPhotoResponse{
		PhotoID:  photo.ID,
		Position: photo.Position,
		URL:      s.appCtx.Signer.URL(photo.OriginalKey),
	}, nil
}

// UpdateConsent records a participant's consent, or their decline when
// Consented is false.
func (s *Service) UpdateConsent(ctx context.Context, req *pb.UpdateConsentRequest) (*pb.UpdateConsentResponse, error) {
	s.log(ctx).Debug("UpdateConsent called", "match", req.MatchID, "user", req.UserID, "consented", req.Consented)
	if err := s.matchRequest(ctx, req.UserID, req.MatchID); err != nil {
		return nil, err
	}

	res, err := s.appCtx.Consent.Update(ctx, req.MatchID, req.UserID, req.Consented)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.UpdateConsentResponse{Success: res.Success, BothConsented: res.BothConsented}, nil
}

// GetConsentStatus reports the consent state of a match for the viewer.
func (s *Service) GetConsentStatus(ctx context.Context, req *pb.GetConsentStatusRequest) (*pb.GetConsentStatusResponse, error) {
	s.log(ctx).Debug("GetConsentStatus called", "match", req.MatchID, "viewer", req.ViewerID)
	if err := s.matchRequest(ctx, req.ViewerID, req.MatchID); err != nil {
		return nil, err
	}

	st, err := s.appCtx.Consent.Status(ctx, req.MatchID, req.ViewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.GetConsentStatusResponse{
		User1ID:                 st.User1ID,
		User2ID:                 st.User2ID,
		User1Consented:          st.User1Consented,
		User2Consented:          st.User2Consented,
		BothConsented:           st.BothConsented,
		MessageCount:            st.MessageCount,
		ShouldShowConsentScreen: st.ShouldShowConsentScreen,
	}, nil
}

// UpdateMessageCount is the chat provider's new-message webhook. Message
// counts drive disclosure, so only service tokens may call it; user
// messages are counted by the chat store hook.
func (s *Service) UpdateMessageCount(ctx context.Context, req *pb.UpdateMessageCountRequest) (*pb.UpdateMessageCountResponse, error) {
	s.log(ctx).Debug("UpdateMessageCount called", "match", req.MatchID)
	if err := auth.RequireService(ctx); err != nil {
		return nil, err
	}
	if req.MatchID == "" {
		return nil, svcErr.InvalidArgument("matchId is required")
	}
	if err := s.appCtx.Matches.IncrementMessageCount(ctx, req.MatchID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.UpdateMessageCountResponse{}, nil
}

// Unmatch ends a match on behalf of one participant.
func (s *Service) Unmatch(ctx context.Context, req *pb.MatchRequest) (*pb.UnmatchResponse, error) {
	s.log(ctx).Debug("Unmatch called", "match", req.MatchID, "user", req.UserID)
	if err := s.matchRequest(ctx, req.UserID, req.MatchID); err != nil {
		return nil, err
	}

	m, err := s.appCtx.Matches.Unmatch(ctx, req.UserID, req.MatchID, match.ReasonUnmatched)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.UnmatchResponse{Success: true, MatchID: m.ID}, nil
}

// EnsureChannel returns the match channel, creating it if provisioning
// after the match did not happen.
func (s *Service) EnsureChannel(ctx context.Context, req *pb.MatchRequest) (*pb.EnsureChannelResponse, error) {
	s.log(ctx).Debug("EnsureChannel called", "match", req.MatchID, "user", req.UserID)
	if _, err := s.participant(ctx, req.UserID, req.MatchID); err != nil {
		return nil, err
	}

	id, err := s.appCtx.Channels.Ensure(ctx, req.MatchID)
	if err != nil {
		s.log(ctx).Error("EnsureChannel failed", "match", req.MatchID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &pb.EnsureChannelResponse{ChannelID: id}, nil
}

// MarkMatchViewed records that the caller opened the match.
func (s *Service) MarkMatchViewed(ctx context.Context, req *pb.MatchRequest) (*pb.MarkMatchViewedResponse, error) {
	s.log(ctx).Debug("MarkMatchViewed called", "match", req.MatchID, "user", req.UserID)
	m, err := s.participant(ctx, req.UserID, req.MatchID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.MarkViewed(ctx, m, req.UserID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.MarkMatchViewedResponse{}, nil
}

// ListIncomingLikes returns all users who swiped right on the caller.
//
// Behavior:
//   - Excludes users the caller swiped left on.
//   - Supports cursor-based pagination with paginationToken.
//   - Returns user id + timestamp pairs.
func (s *Service) ListIncomingLikes(ctx context.Context, req *pb.ListIncomingLikesRequest) (*pb.ListIncomingLikesResponse, error) {
	s.log(ctx).Debug("ListIncomingLikes called", "user", req.UserID)
	if err := s.caller(ctx, req.UserID); err != nil {
		return nil, err
	}

	records, next, err := s.swipes.ListIncomingLikes(ctx, req.UserID, req.PaginationToken, likesPageSize)
	if err != nil {
		s.log(ctx).Error("ListIncomingLikes failed", "err", err)
		return nil, svcErr.Map(err)
	}
	return likers(records, next), nil
}

// ListNewIncomingLikes is ListIncomingLikes restricted to users the caller
// has not swiped on yet.
func (s *Service) ListNewIncomingLikes(ctx context.Context, req *pb.ListIncomingLikesRequest) (*pb.ListIncomingLikesResponse, error) {
	s.log(ctx).Debug("ListNewIncomingLikes called", "user", req.UserID)
	if err := s.caller(ctx, req.UserID); err != nil {
		return nil, err
	}

	records, next, err := s.swipes.ListNewIncomingLikes(ctx, req.UserID, req.PaginationToken, likesPageSize)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return likers(records, next), nil
}

// CountIncomingLikes returns how many users swiped right on the caller.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:{user}).
//  2. If cache miss, falls back to DB via repository.CountIncomingLikes.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountIncomingLikes(ctx context.Context, req *pb.CountIncomingLikesRequest) (*pb.CountIncomingLikesResponse, error) {
	s.log(ctx).Debug("CountIncomingLikes called", "user", req.UserID)
	if err := s.caller(ctx, req.UserID); err != nil {
		return nil, err
	}

	key := s.appCtx.RedisCache.KeyForIncomingLikes(req.UserID)

	// try cache first
	if n, ok, err := s.appCtx.RedisCache.GetInt(ctx, key); err == nil && ok && n >= 0 {
		// refresh TTL since this user is active
		_ = s.appCtx.RedisCache.Client.Expire(ctx, key, likesCountTTL).Err()
		return &pb.CountIncomingLikesResponse{Count: uint64(n)}, nil
	}

	// fallback: DB
	count, err := s.swipes.CountIncomingLikes(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	_, _ = s.appCtx.RedisCache.SetIfAbsent(ctx, key, strconv.FormatInt(count, 10), likesCountTTL)

	return &pb.CountIncomingLikesResponse{Count: uint64(count)}, nil
}

// log is the request-scoped logger set by the server interceptors.
func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOr(ctx, s.appCtx.Logger)
}

func (s *Service) caller(ctx context.Context, userID string) error {
	if userID == "" {
		return svcErr.InvalidArgument("userId is required")
	}
	return auth.Authorize(ctx, userID)
}

func (s *Service) imageRequest(ctx context.Context, viewerID, targetID string, index int) error {
	if targetID == "" {
		return svcErr.InvalidArgument("targetUserId is required")
	}
	if index < 0 {
		return svcErr.InvalidArgument("imageIndex must not be negative")
	}
	return s.caller(ctx, viewerID)
}

func (s *Service) matchRequest(ctx context.Context, userID, matchID string) error {
	if matchID == "" {
		return svcErr.InvalidArgument("matchId is required")
	}
	return s.caller(ctx, userID)
}

// participant loads matchID and checks userID is part of it.
func (s *Service) participant(ctx context.Context, userID, matchID string) (*db.Match, error) {
	if err := s.matchRequest(ctx, userID, matchID); err != nil {
		return nil, err
	}
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !m.HasUser(userID) {
		return nil, svcErr.Map(svcErr.ErrNotParticipant)
	}
	return m, nil
}

func likers(records []db.SwipeRecord, next *string) *pb.ListIncomingLikesResponse {
	resp := &pb.ListIncomingLikesResponse{Likers: make([]*pb.Liker, 0, len(records))}
	for _, r := range records {
		resp.Likers = append(resp.Likers, &pb.Liker{
			UserID:        r.OtherID,
			UnixTimestamp: uint64(r.CreatedAt.UnixMilli()),
		})
	}
	resp.NextPaginationToken = next
	return resp
}
