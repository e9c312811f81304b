package transport

// Envelope is the react-admin response body. Total is set only for getList.
type Envelope[D any] struct {
	Data  D      `json:"data"`
	Total *int64 `json:"total"`
}

func One[D any](data D) Envelope[D] {
	return Envelope[D]{Data: data}
}

func List[D any](data D, total int64) Envelope[D] {
	return Envelope[D]{Data: data, Total: &total}
}
