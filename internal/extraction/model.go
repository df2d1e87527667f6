package extraction

// 内容类型
const (
	ContentJSON  = "JSON"
	ContentText  = "TEXT"
	ContentPDF   = "PDF"
	ContentExcel = "EXCEL"
	ContentPPT   = "PPT"
	ContentPNG   = "PNG"
)

// 页面中会被下载的文件扩展名
var fileExtensions = map[string]bool{
	"pdf": true, "xls": true, "xlsx": true, "png": true,
	"ppt": true, "pptx": true, "doc": true, "docx": true,
}

// Item 抽取结果
// JSON条目的RawContent是解码后的值，TEXT条目是可见文本，文件条目是本地路径
type Item struct {
	SourceName     string      `json:"source_name"`
	SourceCategory string      `json:"source_category"`
	SourceURL      string      `json:"source_url"`
	Route          string      `json:"route"`
	ContentType    string      `json:"content_type"`
	RawContent     interface{} `json:"raw_content"`
	FilePath       string      `json:"file_path,omitempty"`
	Title          string      `json:"title,omitempty"`
}

// IsFile 条目是否为下载的文件
func (it Item) IsFile() bool {
	return it.FilePath != ""
}
