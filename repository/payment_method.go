package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payverify/dto/model"

	"github.com/patrickmn/go-cache"
	"go.elastic.co/apm"
	"gorm.io/gorm"
)

type PaymentMethodRepository struct {
	DB    *gorm.DB
	cache *cache.Cache
}

func NewPaymentMethodRepository(db *gorm.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{DB: db, cache: cache.New(30*time.Minute, 35*time.Minute)}
}

func (r *PaymentMethodRepository) FindBySlug(ctx context.Context, slug string) (*model.PaymentMethod, error) {
	span, ctx := apm.StartSpan(ctx, "FindPaymentMethodBySlug", "repository")
	defer span.End()

	cacheKey := "payment_method:" + slug
	if cached, found := r.cache.Get(cacheKey); found {
		return cached.(*model.PaymentMethod), nil
	}

	var paymentMethod model.PaymentMethod
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&paymentMethod).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment method %s: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching payment method: %w", err)
	}

	r.cache.Set(cacheKey, &paymentMethod, cache.DefaultExpiration)
	return &paymentMethod, nil
}
