package ai

import "github.com/tmc/langchaingo/llms"

// Shot 是一对固定的示例对话（human 提问 + ai 示范回答）。
// Shot 只用于引导模型的语气与格式，永远不会写入任何会话历史。
type Shot struct {
	Human string `json:"human" yaml:"human"`
	AI    string `json:"ai" yaml:"ai"`
}

// Assembler 将人设、示例集、会话历史与新输入拼装为模型入参。
// 字段在进程启动时确定，之后只读；Render 无状态、无副作用，
// 相同入参必然产出逐字节相同的消息序列。
type Assembler struct {
	Persona string
	Shots   []Shot
}

// NewAssembler 创建提示词拼装器。
func NewAssembler(persona string, shots []Shot) *Assembler {
	return &Assembler{
		Persona: persona,
		Shots:   shots,
	}
}

// Render 按固定顺序拼装完整的对话载荷：
// 人设（system）→ 示例集（按配置顺序，human/ai 成对）→ 会话历史
// （按时间顺序）→ 新的用户输入（最后一条）。
//
// Render 不做任何截断或摘要：如果拼装结果超出后端的输入上限，
// 由模型调用环节报错，而不是在这里静默丢弃历史。
func (a *Assembler) Render(history []Turn, input string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 1+2*len(a.Shots)+len(history)+1)

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, a.Persona))
	for _, shot := range a.Shots {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, shot.Human))
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, shot.AI))
	}
	for _, turn := range history {
		messages = append(messages, llms.TextParts(chatMessageType(turn.Role), turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))

	return messages
}

// chatMessageType 将存储角色映射为 langchaingo 的消息类型。
func chatMessageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	case RoleUser:
		return llms.ChatMessageTypeHuman
	default:
		return llms.ChatMessageTypeSystem
	}
}
