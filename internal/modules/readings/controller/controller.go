package controller

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/setarcos/birdroom/internal/modules/readings/repository"
	"github.com/setarcos/birdroom/internal/modules/readings/service"
)

// maxAddBody caps the size of an ingest request body.
const maxAddBody = 1 << 20

// Mux is the route table the controller registers on. Paths are matched
// exactly and for any method.
type Mux interface {
	Handle(path string, handler http.Handler)
	HandleFunc(path string, handler func(http.ResponseWriter, *http.Request))
}

type ReadingsController interface {
	RegisterRoutes(mux Mux)
}

type readingsControllerImpl struct {
	repository repository.ReadingsRepository
	service    *service.Service
}

func NewReadingsController(repository repository.ReadingsRepository, svc *service.Service) ReadingsController {
	return &readingsControllerImpl{repository: repository, service: svc}
}

func (c *readingsControllerImpl) RegisterRoutes(mux Mux) {
	mux.HandleFunc("/op/add", c.handleAdd)
	mux.Handle("/temp", newTempCORS().Handler(http.HandlerFunc(c.handleTemp)))
	mux.HandleFunc("/rooms", c.handleRooms)
}

// newTempCORS lets browser dashboards on any origin read /temp.
func newTempCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
}
