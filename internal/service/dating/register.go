package dating

import (
	"google.golang.org/grpc"

	pb "github.com/oggyb/campus-match/internal/api/datingv1"
	"github.com/oggyb/campus-match/internal/app"
)

// Registrar ties the Dating service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Dating service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Dating service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	service := NewDatingService(r.appCtx)
	pb.RegisterDatingServiceServer(s, service)
}
