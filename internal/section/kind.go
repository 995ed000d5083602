package section

// Kind 为封闭的段种类集合。
type Kind int

const (
	Metadata Kind = iota
	BigCore
	Mca
	PmInfo
	Uncore
	AddressMap
	Tor
)

// rules 为每个种类的规则表；新增种类只需在此登记。
type rules struct {
	key string
	// label: 报告中使用的小写段标签。
	label string
	// revision: 版本字段中期望的修订码；空表示不解码版本。
	revision string
	// rootPrefix: 顶层子键的命名约定（如 core*）；空表示不检查。
	rootPrefix string
	// countRoots: 是否将 rootPrefix 子键计入 rootNodes。
	countRoots bool
	// shallowDiff: 比对时仅比较顶层键存在性（寄存器值随运行变化）。
	shallowDiff bool
}

var kindRules = map[Kind]rules{
	Metadata:   {key: "METADATA", label: "metadata", rootPrefix: "cpu"},
	BigCore:    {key: "big_core", label: "big_core", revision: "4", rootPrefix: "core", countRoots: true, shallowDiff: true},
	Mca:        {key: "MCA", label: "mca", revision: "3E", rootPrefix: "core", countRoots: true, shallowDiff: true},
	PmInfo:     {key: "PM_info", label: "pm_info", revision: "C", rootPrefix: "core", countRoots: true, shallowDiff: true},
	Uncore:     {key: "uncore", label: "uncore", revision: "8"},
	AddressMap: {key: "address_map", label: "address_map", revision: "D"},
	Tor:        {key: "TOR", label: "tor", revision: "9"},
}

// Key 返回该种类在输入文档中的键名（同时作为段名）。
func (k Kind) Key() string { return kindRules[k].key }

// Label 返回报告中的段标签（小写）。
func (k Kind) Label() string { return kindRules[k].label }

func (k Kind) String() string {
	if s := k.Key(); s != "" {
		return s
	}
	return "unknown"
}

// ShallowDiff 报告该种类是否只做顶层键比对。
func (k Kind) ShallowDiff() bool { return kindRules[k].shallowDiff }

// Kinds 返回全部种类（稳定顺序）。
func Kinds() []Kind {
	return []Kind{Metadata, BigCore, Mca, PmInfo, Uncore, AddressMap, Tor}
}

// KindOf 由输入键名反查种类。
func KindOf(key string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Key() == key {
			return k, true
		}
	}
	return 0, false
}
