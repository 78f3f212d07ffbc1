package memrepo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/memrepo"
	"github.com/nlbridge/nlbridge/internal/domain"
)

func TestProductStore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := memrepo.NewProductStore()

	t.Run("seeded catalog is ordered by ID", func(t *testing.T) {
		list := store.List()
		require.Len(list, 5)
		assert.Equal(int64(1), list[0].ID)
		assert.Equal("Laptop", list[0].Name)
		assert.Equal(int64(5), list[4].ID)
	})

	t.Run("find", func(t *testing.T) {
		p, ok := store.Find(2)
		require.True(ok)
		assert.Equal("Mouse", p.Name)

		_, ok = store.Find(999)
		assert.False(ok)
	})

	t.Run("search is case-insensitive substring match", func(t *testing.T) {
		hits := store.Search("LAP")
		require.Len(hits, 1)
		assert.Equal("Laptop", hits[0].Name)

		assert.Empty(store.Search("zzz"))
	})

	t.Run("create assigns sequential IDs", func(t *testing.T) {
		created := store.Create(domain.Product{Name: "Webcam", Price: 89.99, Stock: 10})
		assert.Equal(int64(6), created.ID)

		next := store.Create(domain.Product{Name: "Dock", Price: 199.99})
		assert.Equal(int64(7), next.ID)
	})

	t.Run("update replaces and keeps the ID", func(t *testing.T) {
		updated, ok := store.Update(6, domain.Product{Name: "HD Webcam", Price: 99.99})
		require.True(ok)
		assert.Equal(int64(6), updated.ID)
		assert.Equal("HD Webcam", updated.Name)

		_, ok = store.Update(999, domain.Product{Name: "ghost"})
		assert.False(ok)
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(store.Delete(7))
		assert.False(store.Delete(7))
		_, ok := store.Find(7)
		assert.False(ok)
	})
}

func TestOrderStore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := memrepo.NewOrderStore()

	t.Run("seeded orders start at 101", func(t *testing.T) {
		list := store.List(0, "")
		require.Len(list, 5)
		assert.Equal(int64(101), list[0].ID)
		assert.Equal(int64(105), list[4].ID)
	})

	t.Run("filter by customer", func(t *testing.T) {
		list := store.List(42, "")
		require.Len(list, 2)
		for _, o := range list {
			assert.Equal(int64(42), o.CustomerID)
		}
	})

	t.Run("filter by status is case-insensitive", func(t *testing.T) {
		list := store.List(0, "PENDING")
		require.Len(list, 2)
		for _, o := range list {
			assert.Equal("pending", o.Status)
		}
	})

	t.Run("combined filters", func(t *testing.T) {
		list := store.List(55, "pending")
		require.Len(list, 1)
		assert.Equal(int64(104), list[0].ID)
	})

	t.Run("create assigns the next ID", func(t *testing.T) {
		created := store.Create(domain.Order{CustomerID: 42, ProductID: 5, Quantity: 1, Status: "pending", Total: 299.99})
		assert.Equal(int64(106), created.ID)
	})

	t.Run("update status", func(t *testing.T) {
		updated, ok := store.UpdateStatus(106, "shipped")
		require.True(ok)
		assert.Equal("shipped", updated.Status)

		_, ok = store.UpdateStatus(999, "shipped")
		assert.False(ok)
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(store.Delete(106))
		assert.False(store.Delete(106))
	})
}
