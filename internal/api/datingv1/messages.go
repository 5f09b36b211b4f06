// Package datingv1 is the wire contract of the dating service: request and
// response messages, the gRPC service descriptor and a client.
package datingv1

type CreateSwipeRequest struct {
	SwiperID  string `json:"swiperId"`
	SwipedID  string `json:"swipedId"`
	Direction string `json:"direction"`
}

type Swipe struct {
	SwiperID      string `json:"swiperId"`
	SwipedID      string `json:"swipedId"`
	Direction     string `json:"direction"`
	UnixTimestamp int64  `json:"unixTimestamp"`
}

type CreateSwipeResponse struct {
	Message   string `json:"message"`
	Swipe     *Swipe `json:"swipe"`
	Match     bool   `json:"match"`
	MatchID   string `json:"matchId,omitempty"`
	Duplicate bool   `json:"duplicate"`
	Remaining int    `json:"remaining"`
}

type CountRecentSwipesRequest struct {
	UserID string `json:"userId"`
}

type CountRecentSwipesResponse struct {
	SwipeCount int  `json:"swipeCount"`
	DailyLimit int  `json:"dailyLimit"`
	CanSwipe   bool `json:"canSwipe"`
}

type ImageRequest struct {
	ViewerID     string `json:"viewerId"`
	TargetUserID string `json:"targetUserId"`
	ImageIndex   int    `json:"imageIndex"`
}

type ResolveClarityResponse struct {
	URL            string  `json:"url"`
	ClarityPercent float64 `json:"clarityPercent"`
	Radius         int     `json:"radius"`
	Phase          string  `json:"phase"`
	MessageCount   int64   `json:"messageCount"`
}

type GetBlurredImageURLResponse struct {
	URL          string `json:"url"`
	BlurLevel    int    `json:"blurLevel"`
	MessageCount int64  `json:"messageCount"`
}

type GetImagesRequest struct {
	ViewerID     string `json:"viewerId"`
	TargetUserID string `json:"targetUserId"`
}

type Image struct {
	URL           string `json:"url"`
	BlurLevel     int    `json:"blurLevel"`
	MessageCount  int64  `json:"messageCount"`
	BothConsented bool   `json:"bothConsented"`
}

type GetImagesResponse struct {
	Images []*Image `json:"images"`
}

type UploadPhotoRequest struct {
	UserID string `json:"userId"`
	// Data is the encoded image (JPEG, PNG, GIF, BMP or TIFF).
	Data []byte `json:"data"`
}

type UploadPhotoResponse struct {
	PhotoID  string `json:"photoId"`
	Position int    `json:"position"`
	URL      string `json:"url"`
}

type UpdateConsentRequest struct {
	MatchID   string `json:"matchId"`
	UserID    string `json:"userId"`
	Consented bool   `json:"consented"`
}

type UpdateConsentResponse struct {
	Success       bool `json:"success"`
	BothConsented bool `json:"bothConsented"`
}

type GetConsentStatusRequest struct {
	MatchID  string `json:"matchId"`
	ViewerID string `json:"viewerId"`
}

type GetConsentStatusResponse struct {
	User1ID                 string `json:"user1Id"`
	User2ID                 string `json:"user2Id"`
	User1Consented          bool   `json:"user1Consented"`
	User2Consented          bool   `json:"user2Consented"`
	BothConsented           bool   `json:"bothConsented"`
	MessageCount            int64  `json:"messageCount"`
	ShouldShowConsentScreen bool   `json:"shouldShowConsentScreen"`
}

type UpdateMessageCountRequest struct {
	MatchID string `json:"matchId"`
}

type UpdateMessageCountResponse struct{}

type MatchRequest struct {
	UserID  string `json:"userId"`
	MatchID string `json:"matchId"`
}

type UnmatchResponse struct {
	Success bool   `json:"success"`
	MatchID string `json:"matchId"`
}

type EnsureChannelResponse struct {
	ChannelID string `json:"channelId"`
}

type MarkMatchViewedResponse struct{}

type ListIncomingLikesRequest struct {
	UserID          string  `json:"userId"`
	PaginationToken *string `json:"paginationToken,omitempty"`
}

type Liker struct {
	UserID        string `json:"userId"`
	UnixTimestamp uint64 `json:"unixTimestamp"`
}

type ListIncomingLikesResponse struct {
	Likers              []*Liker `json:"likers"`
	NextPaginationToken *string  `json:"nextPaginationToken,omitempty"`
}

type CountIncomingLikesRequest struct {
	UserID string `json:"userId"`
}

type CountIncomingLikesResponse struct {
	Count uint64 `json:"count"`
}
