package embedding

// RemoteSingleRequest 托管嵌入服务的单文本请求
type RemoteSingleRequest struct {
	Text string `json:"text"`
}

// RemoteBatchRequest 托管嵌入服务的批量请求
type RemoteBatchRequest struct {
	Texts []string `json:"texts"`
}

// RemoteResponse 托管嵌入服务的响应
// 单文本请求也返回二维数组
type RemoteResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// DashScopeRequest DashScope原生嵌入接口请求
type DashScopeRequest struct {
	Model      string                `json:"model"`
	Input      DashScopeRequestInput `json:"input"`
	Parameters *DashScopeParameters  `json:"parameters,omitempty"`
}

type DashScopeRequestInput struct {
	Texts []string `json:"texts"`
}

type DashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// DashScopeResponse DashScope原生嵌入接口响应
type DashScopeResponse struct {
	StatusCode int    `json:"status_code,omitempty"`
	RequestID  string `json:"request_id"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Output     struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}
