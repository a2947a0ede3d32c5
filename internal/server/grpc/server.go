package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/services"
)

// MaxMessageSize bounds request and response bodies.
const MaxMessageSize = 64 << 20

// DocumentService is the subset of services.DocumentStore served over gRPC.
type DocumentService interface {
	CreateDocument(ctx context.Context, in services.CreateDocumentInput, who models.Identity) (*models.Document, error)
	AddVersion(ctx context.Context, documentID string, in services.VersionInput, who models.Identity) (*models.DocumentVersion, error)
	GetVersion(ctx context.Context, documentID, versionID string) ([]byte, *models.DocumentVersion, error)
	GetCurrent(ctx context.Context, documentID string) ([]byte, *models.DocumentVersion, error)
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	SearchDocuments(ctx context.Context, f models.SearchFilter) ([]*models.Document, error)
	VerifyIntegrity(ctx context.Context, documentID string) (*models.IntegrityReport, error)
	SoftDelete(ctx context.Context, documentID string) error
	UpdateMetadata(ctx context.Context, documentID string, title, description *string) (*models.Document, error)
}

type GRPCServer struct {
	address    string
	store      DocumentService
	authorizer Authorizer
	logger     logging.Logger
	jwtSecret  []byte
	health     *health.Server
}

// NewGRPCServer builds a server for store. A nil authorizer admits every
// authenticated caller.
func NewGRPCServer(a string, l logging.Logger, store DocumentService, authorizer Authorizer, secretKey string) *GRPCServer {
	if authorizer == nil {
		authorizer = AuthenticatedOnly{}
	}
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		store:      store,
		authorizer: authorizer,
		jwtSecret:  []byte(secretKey),
		health:     health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	)
	srv.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
var _ DocumentService = (*services.DocumentStore)(nil)
