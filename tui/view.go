package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

func (m *model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("File Ingest 监控"))
	b.WriteString("\n\n")

	switch m.state {
	case StateProcessing:
		b.WriteString(fmt.Sprintf("%s 周期进行中，%d / %d 个文件\n\n",
			m.spinner.View(), m.done, m.total))
		b.WriteString(m.progressBar.View())
		b.WriteString("\n\n")

		if m.lastOutcome != nil {
			b.WriteString(renderOutcome(m.lastOutcome))
			b.WriteString("\n")
		}

	case StateWaiting:
		b.WriteString(fmt.Sprintf("%s 等待下一个摄取周期...\n\n", m.spinner.View()))

		if m.lastStats != nil {
			b.WriteString(labelStyle.Render(fmt.Sprintf("上一周期（第 %d 轮）", m.cycles)))
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render("总数:"), valueStyle.Render(fmt.Sprintf("%d", m.lastStats.Total))))
			b.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render("成功:"), successStyle.Render(fmt.Sprintf("%d", m.lastStats.Processed))))
			b.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render("失败:"), failedStyle.Render(fmt.Sprintf("%d", m.lastStats.Failed))))
			b.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render("重复:"), duplicateStyle.Render(fmt.Sprintf("%d", m.lastStats.Duplicates))))
		}
	}

	b.WriteString(helpStyle.Render("按 q 退出"))
	b.WriteString("\n")

	return b.String()
}

func renderOutcome(o *ingest.Outcome) string {
	name := filepath.Base(o.FilePath)
	switch o.Status {
	case ingest.OutcomeSuccess:
		return successStyle.Render(fmt.Sprintf("✓ %s", name))
	case ingest.OutcomeDuplicate:
		return duplicateStyle.Render(fmt.Sprintf("⊗ %s（重复）", name))
	default:
		return failedStyle.Render(fmt.Sprintf("✗ %s（%s）", name, o.Status))
	}
}
