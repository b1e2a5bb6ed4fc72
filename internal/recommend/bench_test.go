package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/scoring"
	"github.com/hyperjump/bookshelf/internal/storage"
)

func benchHistory(n int) []*models.Book {
	saved := make([]*models.Book, n)
	for i := range saved {
		idx := i * 7
		saved[i] = &models.Book{
			ID:         fmt.Sprintf("b%d", i),
			Title:      fmt.Sprintf("Book %d", i),
			DenseIndex: &idx,
			Categories: []string{"Fiction", "History"},
		}
	}
	return saved
}

func BenchmarkEncode(b *testing.B) {
	enc, err := NewEncoder(2003, 1000, nil)
	if err != nil {
		b.Fatal(err)
	}
	saved := benchHistory(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = enc.Encode(saved)
	}
}

func BenchmarkRecommend(b *testing.B) {
	store, err := storage.NewSQLiteStorage(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		idx := i
		book := &models.Book{
			ID:         fmt.Sprintf("b%d", i),
			Title:      fmt.Sprintf("Book %04d", i),
			DenseIndex: &idx,
			Categories: []string{[]string{"Fiction", "History", "Cooking"}[i%3]},
		}
		if err := store.CreateBook(ctx, book); err != nil {
			b.Fatal(err)
		}
	}
	if err := store.CreateUser(ctx, &models.User{ID: "u1", Name: "bench"}); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err := store.SaveBook(ctx, "u1", fmt.Sprintf("b%d", i*13)); err != nil {
			b.Fatal(err)
		}
	}
	enc, err := NewEncoder(2003, 1000, nil)
	if err != nil {
		b.Fatal(err)
	}
	r := New(store, scoring.NewMockScorer(2003, 1000), enc, Config{TopK: 20})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Recommend(ctx, "u1", 1, 8); err != nil {
			b.Fatal(err)
		}
	}
}
