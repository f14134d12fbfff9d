package mailbox

import "mailboxgw/internal/constants"

// State 派生状态，读时根据各区域是否存在对象计算，从不存储
type State string

const (
	StateCompleted State = constants.StatusCompleted
	StatePending   State = constants.StatusPending
	StateProcessed State = constants.StatusProcessed
	StateNotFound  State = constants.StatusNotFound
)

// Terminal 是否为终态；pending 需要调用方继续轮询
func (s State) Terminal() bool {
	return s != StatePending
}

// probe 决策表中的一行
type probe struct {
	region  Region
	state   State
	message string
}

// statusProbes 按优先级探测：响应优先于一切，requests 先于 processed。
// 顺序即状态机，不要调整。
var statusProbes = []probe{
	{region: RegionResponses, state: StateCompleted},
	{region: RegionRequests, state: StatePending, message: constants.MsgPending},
	{region: RegionProcessed, state: StateProcessed, message: constants.MsgProcessed},
}

// StatusResult check_status 结果
type StatusResult struct {
	SessionID    string
	MessageID    string
	State        State
	Message      string
	Response     []byte // 仅 completed
	ResponsePath string // 仅 completed
}
