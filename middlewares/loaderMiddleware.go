package middlewares

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the lookups list responses make per row.
type Loaders struct {
	customerLoader *dataloader.Loader[int, *models.Customer]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	customerReader := &customerReader{db: conn}

	return &Loaders{
		customerLoader: dataloader.NewBatchedLoader(customerReader.getCustomers, dataloader.WithWait[int, *models.Customer](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(WithLoaders(c.Request.Context(), NewLoaders(db)))
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// For returns nil when no loaders were installed for the request.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

type identifiable interface {
	GetId() int
}

// turns results from db into dataloader results, in the order of ids
func generateLoaderResults[T identifiable](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T, len(results))
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[*T]{Error: fmt.Errorf("%w: id %d", utils.ErrorRecordNotFound, id)})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}
