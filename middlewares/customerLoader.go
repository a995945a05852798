package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type customerReader struct {
	db *gorm.DB
}

func (r *customerReader) getCustomers(ctx context.Context, ids []int) []*dataloader.Result[*models.Customer] {
	var results []models.Customer
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Customer](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetCustomer(ctx context.Context, id int) (*models.Customer, error) {
	loaders := For(ctx)
	if loaders == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return loaders.customerLoader.Load(ctx, id)()
}

func GetCustomers(ctx context.Context, ids []int) ([]*models.Customer, []error) {
	loaders := For(ctx)
	if loaders == nil {
		return make([]*models.Customer, len(ids)), nil
	}
	return loaders.customerLoader.LoadMany(ctx, ids)()
}

// CustomerRefs resolves the customers behind ids in one batch; unknown ids are left out.
func CustomerRefs(ctx context.Context, ids []int) map[int]models.CustomerRef {
	ids = utils.UniqueInts(ids)
	customers, _ := GetCustomers(ctx, ids)
	refs := make(map[int]models.CustomerRef, len(customers))
	for _, c := range customers {
		if c != nil {
			refs[c.ID] = c.Ref()
		}
	}
	return refs
}
