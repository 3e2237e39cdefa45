package instruction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// 解码用的中间结构，指针字段用于区分“缺失”与“零值”
type rawTransfer struct {
	Address *string  `json:"address" yaml:"address"`
	Amount  *float64 `json:"amount" yaml:"amount"`
	Coin    *string  `json:"coin" yaml:"coin"`
}

type rawInstruction struct {
	Recipients *[]rawTransfer `json:"recipients" yaml:"recipients"`
	Senders    *[]rawTransfer `json:"senders" yaml:"senders"`
}

// Load 读取指令文件并解码
func Load(path string) (*MultisendInstruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruction file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse 将原始文档解码为 MultisendInstruction，只做结构校验。
// 以 '{' 开头的文档按 JSON 解析，其余按 YAML 解析。
func Parse(raw []byte) (*MultisendInstruction, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &MalformedInputError{Reason: "empty document"}
	}

	var doc rawInstruction
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if err := dec.Decode(&doc); err != nil {
			return nil, &MalformedInputError{Reason: "invalid json", Cause: err}
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, &MalformedInputError{Reason: "invalid yaml", Cause: err}
		}
	}

	if doc.Recipients == nil {
		return nil, &MalformedInputError{Reason: "missing field \"recipients\""}
	}
	if doc.Senders == nil {
		return nil, &MalformedInputError{Reason: "missing field \"senders\""}
	}

	recipients, err := convertList("recipients", *doc.Recipients, false)
	if err != nil {
		return nil, err
	}
	senders, err := convertList("senders", *doc.Senders, true)
	if err != nil {
		return nil, err
	}
	return &MultisendInstruction{Recipients: recipients, Senders: senders}, nil
}

// convertList allowZero 为 false 时金额必须为正
func convertList(field string, list []rawTransfer, allowZero bool) ([]TransferInstruction, error) {
	out := make([]TransferInstruction, 0, len(list))
	for i, r := range list {
		switch {
		case r.Address == nil:
			return nil, &MalformedInputError{Reason: fmt.Sprintf("%s[%d]: missing field \"address\"", field, i)}
		case r.Amount == nil:
			return nil, &MalformedInputError{Reason: fmt.Sprintf("%s[%d]: missing field \"amount\"", field, i)}
		case r.Coin == nil:
			return nil, &MalformedInputError{Reason: fmt.Sprintf("%s[%d]: missing field \"coin\"", field, i)}
		}
		amount := *r.Amount
		if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("%s[%d]: invalid amount %v", field, i, amount)}
		}
		if amount == 0 && !allowZero {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("%s[%d]: amount must be greater than zero", field, i)}
		}
		out = append(out, TransferInstruction{Address: *r.Address, Amount: amount, Coin: *r.Coin})
	}
	return out, nil
}

// Marshal 将指令重新编码为 JSON 文档
func Marshal(m *MultisendInstruction) ([]byte, error) {
	doc := *m
	if doc.Recipients == nil {
		doc.Recipients = []TransferInstruction{}
	}
	if doc.Senders == nil {
		doc.Senders = []TransferInstruction{}
	}
	return json.MarshalIndent(doc, "", "  ")
}
