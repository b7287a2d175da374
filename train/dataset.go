// Package train 在本地 CSV 数据集上训练流失模型并产出模型产物。
//
// 流程：分层切分 → 拟合特征流水线 → 拟合逻辑回归 → 搜索 F1 最优阈值 → 评估。
package train

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/pkg/conv"
)

// DatasetName 训练数据集
const DatasetName = "UCI Iranian Churn Dataset (#563)"

// Dataset 原始记录与标签（1 = 流失）
type Dataset struct {
	Records []core.RawRecord
	Labels  []int
}

// Len 样本数
func (d *Dataset) Len() int { return len(d.Labels) }

// Subset 按下标取子集
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Records: make([]core.RawRecord, len(idx)),
		Labels:  make([]int, len(idx)),
	}
	for i, j := range idx {
		out.Records[i] = d.Records[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

// LoadCSV 读取带表头的 CSV，标签列为 feature.LabelColumn
func LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	records, err := feature.ReadCSVRecords(ctx, f)
	if err != nil {
		return nil, eris.Wrapf(err, "read dataset %s", path)
	}
	return NewDataset(records)
}

// NewDataset 从记录中拆出标签列
func NewDataset(records []core.RawRecord) (*Dataset, error) {
	ds := &Dataset{
		Records: make([]core.RawRecord, 0, len(records)),
		Labels:  make([]int, 0, len(records)),
	}
	for i, rec := range records {
		raw, ok := rec[feature.LabelColumn]
		if !ok {
			return nil, fmt.Errorf("record %d: missing label column %q", i, feature.LabelColumn)
		}
		v, ok := conv.ToFloat64(raw)
		if !ok || (v != 0 && v != 1) {
			return nil, fmt.Errorf("record %d: label %v is not 0/1", i, raw)
		}
		features := make(core.RawRecord, len(rec)-1)
		for k, val := range rec {
			if k != feature.LabelColumn {
				features[k] = val
			}
		}
		ds.Records = append(ds.Records, features)
		ds.Labels = append(ds.Labels, int(v))
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	return ds, nil
}
