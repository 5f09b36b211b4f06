package datingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "dating.v1.DatingService"

// DatingServiceServer is the server API of DatingService.
type DatingServiceServer interface {
	CreateSwipe(context.Context, *CreateSwipeRequest) (*CreateSwipeResponse, error)
	CountRecentSwipes(context.Context, *CountRecentSwipesRequest) (*CountRecentSwipesResponse, error)
	ResolveClarity(context.Context, *ImageRequest) (*ResolveClarityResponse, error)
	GetBlurredImageURL(context.Context, *ImageRequest) (*GetBlurredImageURLResponse, error)
	GetImages(context.Context, *GetImagesRequest) (*GetImagesResponse, error)
	UploadPhoto(context.Context, *UploadPhotoRequest) (*UploadPhotoResponse, error)
	UpdateConsent(context.Context, *UpdateConsentRequest) (*UpdateConsentResponse, error)
	GetConsentStatus(context.Context, *GetConsentStatusRequest) (*GetConsentStatusResponse, error)
	UpdateMessageCount(context.Context, *UpdateMessageCountRequest) (*UpdateMessageCountResponse, error)
	Unmatch(context.Context, *MatchRequest) (*UnmatchResponse, error)
	EnsureChannel(context.Context, *MatchRequest) (*EnsureChannelResponse, error)
	MarkMatchViewed(context.Context, *MatchRequest) (*MarkMatchViewedResponse, error)
	ListIncomingLikes(context.Context, *ListIncomingLikesRequest) (*ListIncomingLikesResponse, error)
	ListNewIncomingLikes(context.Context, *ListIncomingLikesRequest) (*ListIncomingLikesResponse, error)
	CountIncomingLikes(context.Context, *CountIncomingLikesRequest) (*CountIncomingLikesResponse, error)
}

// UnimplementedDatingServiceServer answers every method with Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedDatingServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedDatingServiceServer) CreateSwipe(context.Context, *CreateSwipeRequest) (*CreateSwipeResponse, error) {
	return nil, unimplemented("CreateSwipe")
}
func (UnimplementedDatingServiceServer) CountRecentSwipes(context.Context, *CountRecentSwipesRequest) (*CountRecentSwipesResponse, error) {
	return nil, unimplemented("CountRecentSwipes")
}
func (UnimplementedDatingServiceServer) ResolveClarity(context.Context, *ImageRequest) (*ResolveClarityResponse, error) {
	return nil, unimplemented("ResolveClarity")
}
func (UnimplementedDatingServiceServer) GetBlurredImageURL(context.Context, *ImageRequest) (*GetBlurredImageURLResponse, error) {
	return nil, unimplemented("GetBlurredImageUrl")
}
func (UnimplementedDatingServiceServer) GetImages(context.Context, *GetImagesRequest) (*GetImagesResponse, error) {
	return nil, unimplemented("GetImages")
}
func (UnimplementedDatingServiceServer) UploadPhoto(context.Context, *UploadPhotoRequest) (*UploadPhotoResponse, error) {
	return nil, unimplemented("UploadPhoto")
}
func (UnimplementedDatingServiceServer) UpdateConsent(context.Context, *UpdateConsentRequest) (*UpdateConsentResponse, error) {
	return nil, unimplemented("UpdateConsent")
}
func (UnimplementedDatingServiceServer) GetConsentStatus(context.Context, *GetConsentStatusRequest) (*GetConsentStatusResponse, error) {
	return nil, unimplemented("GetConsentStatus")
}
func (UnimplementedDatingServiceServer) UpdateMessageCount(context.Context, *UpdateMessageCountRequest) (*UpdateMessageCountResponse, error) {
	return nil, unimplemented("UpdateMessageCount")
}
func (UnimplementedDatingServiceServer) Unmatch(context.Context, *MatchRequest) (*UnmatchResponse, error) {
	return nil, unimplemented("Unmatch")
}
func (UnimplementedDatingServiceServer) EnsureChannel(context.Context, *MatchRequest) (*EnsureChannelResponse, error) {
	return nil, unimplemented("EnsureChannel")
}
func (UnimplementedDatingServiceServer) MarkMatchViewed(context.Context, *MatchRequest) (*MarkMatchViewedResponse, error) {
	return nil, unimplemented("MarkMatchViewed")
}
func (UnimplementedDatingServiceServer) ListIncomingLikes(context.Context, *ListIncomingLikesRequest) (*ListIncomingLikesResponse, error) {
	return nil, unimplemented("ListIncomingLikes")
}
func (UnimplementedDatingServiceServer) ListNewIncomingLikes(context.Context, *ListIncomingLikesRequest) (*ListIncomingLikesResponse, error) {
	return nil, unimplemented("ListNewIncomingLikes")
}
func (UnimplementedDatingServiceServer) CountIncomingLikes(context.Context, *CountIncomingLikesRequest) (*CountIncomingLikesResponse, error) {
	return nil, unimplemented("CountIncomingLikes")
}

// unary builds the MethodDesc of one RPC.
func unary[Req, Resp any](name string, call func(DatingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DatingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DatingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DatingServiceDesc describes DatingService for grpc.Server.RegisterService.
var DatingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DatingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSwipe", DatingServiceServer.CreateSwipe),
		unary("CountRecentSwipes", DatingServiceServer.CountRecentSwipes),
		unary("ResolveClarity", DatingServiceServer.ResolveClarity),
		unary("GetBlurredImageUrl", DatingServiceServer.GetBlurredImageURL),
		unary("GetImages", DatingServiceServer.GetImages),
		unary("UploadPhoto", DatingServiceServer.UploadPhoto),
		unary("UpdateConsent", DatingServiceServer.UpdateConsent),
		unary("GetConsentStatus", DatingServiceServer.GetConsentStatus),
		unary("UpdateMessageCount", DatingServiceServer.UpdateMessageCount),
		unary("Unmatch", DatingServiceServer.Unmatch),
		unary("EnsureChannel", DatingServiceServer.EnsureChannel),
		unary("MarkMatchViewed", DatingServiceServer.MarkMatchViewed),
		unary("ListIncomingLikes", DatingServiceServer.ListIncomingLikes),
		unary("ListNewIncomingLikes", DatingServiceServer.ListNewIncomingLikes),
		unary("CountIncomingLikes", DatingServiceServer.CountIncomingLikes),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dating/v1/dating.json",
}

func RegisterDatingServiceServer(s grpc.ServiceRegistrar, srv DatingServiceServer) {
	s.RegisterService(&DatingServiceDesc, srv)
}

// DatingServiceClient is the client API of DatingService.
type DatingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDatingServiceClient(cc grpc.ClientConnInterface) *DatingServiceClient {
	return &DatingServiceClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, c *DatingServiceClient, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DatingServiceClient) CreateSwipe(ctx context.Context, in *CreateSwipeRequest, opts ...grpc.CallOption) (*CreateSwipeResponse, error) {
	return invoke[CreateSwipeRequest, CreateSwipeResponse](ctx, c, "CreateSwipe", in, opts)
}

func (c *DatingServiceClient) CountRecentSwipes(ctx context.Context, in *CountRecentSwipesRequest, opts ...grpc.CallOption) (*CountRecentSwipesResponse, error) {
	return invoke[CountRecentSwipesRequest, CountRecentSwipesResponse](ctx, c, "CountRecentSwipes", in, opts)
}

func (c *DatingServiceClient) ResolveClarity(ctx context.Context, in *ImageRequest, opts ...grpc.CallOption) (*ResolveClarityResponse, error) {
	return invoke[ImageRequest, ResolveClarityResponse](ctx, c, "ResolveClarity", in, opts)
}

func (c *DatingServiceClient) GetBlurredImageURL(ctx context.Context, in *ImageRequest, opts ...grpc.CallOption) (*GetBlurredImageURLResponse, error) {
	return invoke[ImageRequest, GetBlurredImageURLResponse](ctx, c, "GetBlurredImageUrl", in, opts)
}

func (c *DatingServiceClient) GetImages(ctx context.Context, in *GetImagesRequest, opts ...grpc.CallOption) (*GetImagesResponse, error) {
	return invoke[GetImagesRequest, GetImagesResponse](ctx, c, "GetImages", in, opts)
}

func (c *DatingServiceClient) UploadPhoto(ctx context.Context, in *UploadPhotoRequest, opts ...grpc.CallOption) (*UploadPhotoResponse, error) {
	return invoke[UploadPhotoRequest, UploadPhotoResponse](ctx, c, "UploadPhoto", in, opts)
}

func (c *DatingServiceClient) UpdateConsent(ctx context.Context, in *UpdateConsentRequest, opts ...grpc.CallOption) (*UpdateConsentResponse, error) {
	return invoke[UpdateConsentRequest, UpdateConsentResponse](ctx, c, "UpdateConsent", in, opts)
}

func (c *DatingServiceClient) GetConsentStatus(ctx context.Context, in *GetConsentStatusRequest, opts ...grpc.CallOption) (*GetConsentStatusResponse, error) {
	return invoke[GetConsentStatusRequest, GetConsentStatusResponse](ctx, c, "GetConsentStatus", in, opts)
}

func (c *DatingServiceClient) UpdateMessageCount(ctx context.Context, in *UpdateMessageCountRequest, opts ...grpc.CallOption) (*UpdateMessageCountResponse, error) {
	return invoke[UpdateMessageCountRequest, UpdateMessageCountResponse](ctx, c, "UpdateMessageCount", in, opts)
}

func (c *DatingServiceClient) Unmatch(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*UnmatchResponse, error) {
	return invoke[MatchRequest, UnmatchResponse](ctx, c, "Unmatch", in, opts)
}

func (c *DatingServiceClient) EnsureChannel(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*EnsureChannelResponse, error) {
	return invoke[MatchRequest, EnsureChannelResponse](ctx, c, "EnsureChannel", in, opts)
}

func (c *DatingServiceClient) MarkMatchViewed(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*MarkMatchViewedResponse, error) {
	return invoke[MatchRequest, MarkMatchViewedResponse](ctx, c, "MarkMatchViewed", in, opts)
}

func (c *DatingServiceClient) ListIncomingLikes(ctx context.Context, in *ListIncomingLikesRequest, opts ...grpc.CallOption) (*ListIncomingLikesResponse, error) {
	return invoke[ListIncomingLikesRequest, ListIncomingLikesResponse](ctx, c, "ListIncomingLikes", in, opts)
}

func (c *DatingServiceClient) ListNewIncomingLikes(ctx context.Context, in *ListIncomingLikesRequest, opts ...grpc.CallOption) (*ListIncomingLikesResponse, error) {
	return invoke[ListIncomingLikesRequest, ListIncomingLikesResponse](ctx, c, "ListNewIncomingLikes", in, opts)
}

func (c *DatingServiceClient) CountIncomingLikes(ctx context.Context, in *CountIncomingLikesRequest, opts ...grpc.CallOption) (*CountIncomingLikesResponse, error) {
	return invoke[CountIncomingLikesRequest, CountIncomingLikesResponse](ctx, c, "CountIncomingLikes", in, opts)
}
