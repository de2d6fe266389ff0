// rwusd-top 实时查看正在运行的转换循环状态
// 从 rwusd 的状态接口轮询数据，按终端仪表盘展示
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

// statusPayload 状态接口响应
type statusPayload struct {
	AccountID     string  `json:"account_id"`
	State         string  `json:"state"`
	Phase         string  `json:"phase"`
	StartedAt     string  `json:"started_at"`
	TotalCycles   int     `json:"total_cycles"`
	TotalOperated string  `json:"total_operated"`
	TotalProfit   string  `json:"total_profit"`
	AvgProfitRate *string `json:"avg_profit_rate"`
}

type statusMsg statusPayload

type errMsg struct{ err error }

type tickMsg time.Time

type model struct {
	baseURL  string
	interval time.Duration
	status   *statusPayload
	err      error
	polledAt time.Time
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// poll 拉取一次状态
func (m model) poll() tea.Cmd {
	url := m.baseURL + "/api/status"
	return func() tea.Msg {
		client := http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return errMsg{err: err}
		}
		defer resp.Body.Close()

		var payload statusPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return errMsg{err: err}
		}
		return statusMsg(payload)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), m.tick())
	case statusMsg:
		status := statusPayload(msg)
		m.status = &status
		m.err = nil
		m.polledAt = time.Now()
	case errMsg:
		m.err = msg.err
		m.polledAt = time.Now()
	}
	return m, nil
}

func (m model) View() string {
	header := titleStyle.Render("RWUSD 转换循环监控") + "  " + dimStyle.Render(m.baseURL)

	var body string
	switch {
	case m.err != nil:
		body = badStyle.Render(fmt.Sprintf("连接失败: %v", m.err)) + "\n" +
			dimStyle.Render("rwusd 是否带 -status-addr 启动？")
	case m.status == nil:
		body = dimStyle.Render("等待数据...")
	default:
		s := m.status
		stateStyle := goodStyle
		if s.State == "aborted" {
			stateStyle = badStyle
		}
		rate := "N/A（尚无结算）"
		if s.AvgProfitRate != nil {
			rate = *s.AvgProfitRate + "%"
		}
		rows := []string{
			labelStyle.Render("账号") + valueStyle.Render(s.AccountID),
			labelStyle.Render("状态") + stateStyle.Render(s.State+" / "+s.Phase),
			labelStyle.Render("总循环数") + valueStyle.Render(fmt.Sprintf("%d", s.TotalCycles)),
			labelStyle.Render("累计投入") + valueStyle.Render(s.TotalOperated+" USDT"),
			labelStyle.Render("累计盈亏") + valueStyle.Render(s.TotalProfit+" USDT"),
			labelStyle.Render("平均利润率") + valueStyle.Render(rate),
		}
		body = lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	footer := dimStyle.Render(fmt.Sprintf("刷新于 %s · q 退出", m.polledAt.Format("15:04:05")))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer)) + "\n"
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8718", "rwusd 状态接口地址")
	interval := flag.Duration("interval", 2*time.Second, "刷新间隔")
	flag.Parse()

	m := model{
		baseURL:  *addr,
		interval: *interval,
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "启动监控界面失败: %v\n", err)
		os.Exit(1)
	}
}
