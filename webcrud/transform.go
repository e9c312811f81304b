package webcrud

import (
	"context"
	"fmt"
)

// TransformFn maps a stored row to the DTO written to the client.
type TransformFn[T any, DTO any] func(ctx context.Context, src T) (DTO, error)

// MapSlice applies fn to every element of in.
func MapSlice[T any, DTO any](ctx context.Context, in []T, fn TransformFn[T, DTO]) ([]DTO, error) {
	if fn == nil {
		return nil, fmt.Errorf("transform fn is nil")
	}
	out := make([]DTO, len(in))
	for i := range in {
		dto, err := fn(ctx, in[i])
		if err != nil {
			return nil, err
		}
		out[i] = dto
	}
	return out, nil
}
