package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		// record: 一条原始记录，内部列名 -> 数值（缺失值不出现在 map 中）
		cel.Variable("record", cel.MapType(cel.StringType, cel.DoubleType)),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Rule 是一条数据质量规则，使用 CEL (Common Expression Language) 表达式。
// 表达式返回 true 表示记录通过。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：record["Age"] >= 0.0
//   - 存在性："Age" in record
//   - 逻辑：!("Age" in record) || record["Age"] >= 0.0
type Rule struct {
	Name    string
	Expr    string
	Message string

	prg cel.Program
}

// NewRule 编译规则。编译后的程序线程安全，可多次调用 Evaluate。
func NewRule(name, expr, message string) (*Rule, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule %s: compile error: %w", name, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %v", name, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: program error: %w", name, err)
	}
	return &Rule{Name: name, Expr: expr, Message: message, prg: prg}, nil
}

// MustRule 同 NewRule，编译失败时 panic，用于内置规则
func MustRule(name, expr, message string) *Rule {
	r, err := NewRule(name, expr, message)
	if err != nil {
		panic(err)
	}
	return r
}

// Evaluate 对一条记录求值
func (r *Rule) Evaluate(record map[string]float64) (bool, error) {
	out, _, err := r.prg.Eval(map[string]interface{}{"record": record})
	if err != nil {
		return false, fmt.Errorf("rule %s: eval error: %w", r.Name, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s: expression must return boolean, got %T", r.Name, out.Value())
	}
	return result, nil
}
