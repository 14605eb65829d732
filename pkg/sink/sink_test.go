package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/logsift/logsift/internal/model"
)

func TestCountingSink(t *testing.T) {
	s := NewCounting()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Insert(ctx, &model.Record{Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}
	if s.Count() != 5 {
		t.Errorf("count = %d, want 5", s.Count())
	}
}

func TestFuncAdapter(t *testing.T) {
	want := errors.New("boom")
	var got *model.Record

	f := Func(func(ctx context.Context, rec *model.Record) error {
		got = rec
		return want
	})

	rec := &model.Record{Message: "hello"}
	if err := f.Insert(context.Background(), rec); !errors.Is(err, want) {
		t.Errorf("err = %v", err)
	}
	if got != rec {
		t.Error("record not passed through")
	}
}
