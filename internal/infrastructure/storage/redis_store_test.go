package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestRedisStoreLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "{casecollector}:pending")).
		Return(mock.Result(mock.RedisString(`[{"id":"a"}]`)))

	s := newRedisStore(c, "")
	raw, err := s.Load(context.Background(), "pending")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `[{"id":"a"}]` {
		t.Fatalf("payload = %s", raw)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "cc:approved")).
		Return(mock.Result(mock.RedisNil()))

	s := newRedisStore(c, "cc:")
	raw, err := s.Load(context.Background(), "approved")
	if err != nil || raw != nil {
		t.Fatalf("Load = %s, %v; want nil, nil", raw, err)
	}
}

func TestRedisStoreLoadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "{casecollector}:approved")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newRedisStore(c, "")
	_, err := s.Load(context.Background(), "approved")
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Op != OpLoad {
		t.Fatalf("expected load error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline, got %v", err)
	}
}

func TestRedisStoreSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "{casecollector}:run_logs", `[]`)).
		Return(mock.Result(mock.RedisString("OK")))

	s := newRedisStore(c, "")
	if err := s.Save(context.Background(), "run_logs", []byte(`[]`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedisStoreSaveBatchUsesSingleMset(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("MSET",
			"{casecollector}:approved", `[1]`,
			"{casecollector}:pending", `[2]`,
		)).
		Return(mock.Result(mock.RedisString("OK")))

	s := newRedisStore(c, "")
	err := s.SaveBatch(context.Background(), map[string][]byte{
		"pending":  []byte(`[2]`),
		"approved": []byte(`[1]`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedisStoreSaveError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET"
		})).
		Return(mock.ErrorResult(errors.New("READONLY")))

	s := newRedisStore(c, "")
	if err := s.Save(context.Background(), "pending", []byte(`[]`)); err == nil {
		t.Fatal("expected error")
	}
}
