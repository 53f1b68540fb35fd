package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_RollbackRestoresStock(t *testing.T) {
	s := NewMemStore()
	s.SeedProduct(catalog.Product{ID: 1, Name: "Kopi", PriceCents: 1000, Stock: 5})

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(tx Tx) error {
		if _, err := tx.ProductForUpdate(context.Background(), 1); err != nil {
			return err
		}
		if err := tx.DecrementStock(context.Background(), 1, 3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, ok := s.Product(1)
	require.True(t, ok)
	assert.Equal(t, 5, p.Stock)

	_, err = s.OrderByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemStore_ConcurrentDecrements(t *testing.T) {
	s := NewMemStore()
	s.SeedProduct(catalog.Product{ID: 1, Name: "Kopi", PriceCents: 1000, Stock: 100})

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(context.Background(), func(tx Tx) error {
				p, err := tx.ProductForUpdate(context.Background(), 1)
				if err != nil {
					return err
				}
				if p.Stock < 3 {
					return &catalog.InsufficientStockError{ProductID: 1, Available: p.Stock, Requested: 3}
				}
				return tx.DecrementStock(context.Background(), 1, 3)
			})
		}()
	}
	wg.Wait()

	// 100 / 3 -> 33 transaksi sukses, sisa stok 1, tidak pernah negatif
	p, _ := s.Product(1)
	assert.Equal(t, 1, p.Stock)
}

func TestMemStore_DisjointProductsDoNotBlock(t *testing.T) {
	s := NewMemStore()
	s.SeedProduct(catalog.Product{ID: 1, Name: "Kopi", PriceCents: 1000, Stock: 5})
	s.SeedProduct(catalog.Product{ID: 2, Name: "Teh", PriceCents: 900, Stock: 5})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	// Tx pertama pegang lock product 1 sampai release ditutup.
	go func() {
		_ = s.InTx(context.Background(), func(tx Tx) error {
			_, _ = tx.ProductForUpdate(context.Background(), 1)
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Tx product 2 harus jalan tanpa menunggu tx product 1.
	go func() {
		_ = s.InTx(context.Background(), func(tx Tx) error {
			if _, err := tx.ProductForUpdate(context.Background(), 2); err != nil {
				return err
			}
			return tx.DecrementStock(context.Background(), 2, 1)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transaction on disjoint product blocked")
	}
	close(release)

	p2, _ := s.Product(2)
	assert.Equal(t, 4, p2.Stock)
}

func TestMemStore_ListOrdersPagination(t *testing.T) {
	s := NewMemStore()
	s.SeedProduct(catalog.Product{ID: 1, Name: "Kopi", PriceCents: 1000, Stock: 100})
	svc := NewService(s)

	for i := 0; i < 5; i++ {
		_, err := svc.PlaceOrder(context.Background(), int64(i+1), []Line{{ProductID: 1, Qty: 1}})
		require.NoError(t, err)
	}

	page, err := s.ListOrders(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListOrders(context.Background(), 10, 4)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	none, err := s.ListOrders(context.Background(), 10, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}
