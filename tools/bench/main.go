package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"

	"github.com/google/uuid"
)

// 好友请求竞争与私信压测：
// 每一对用户同时互发好友请求，之后检查双方看到的关系是否一致，
// 再并发发送私信并核对未读数。服务端需使用相同的 JWT 密钥。

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type Stats struct {
	mu        sync.Mutex
	total     int
	ok        int
	byStatus  map[int]int
	sum       time.Duration
	max       time.Duration
	min       time.Duration
	anomalies []string
}

func NewStats() *Stats {
	return &Stats{byStatus: make(map[int]int)}
}

func (s *Stats) Add(status int, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byStatus[status]++
	if status == http.StatusOK {
		s.ok++
	}
	s.sum += latency
	if latency > s.max {
		s.max = latency
	}
	if s.min == 0 || latency < s.min {
		s.min = latency
	}
}

func (s *Stats) Anomaly(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, fmt.Sprintf(format, args...))
}

func (s *Stats) Report(took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Println("\n=== 测试结果 ===")
	fmt.Printf("耗时: %v\n", took)
	fmt.Printf("总请求: %d 成功(200): %d\n", s.total, s.ok)
	for status, n := range s.byStatus {
		fmt.Printf("  HTTP %d: %d\n", status, n)
	}
	if s.total > 0 {
		fmt.Printf("延迟 平均: %v 最大: %v 最小: %v\n", s.sum/time.Duration(s.total), s.max, s.min)
		fmt.Printf("QPS: %.2f\n", float64(s.total)/took.Seconds())
	}
	if len(s.anomalies) == 0 {
		fmt.Println("一致性检查: 通过")
		return
	}
	fmt.Printf("一致性检查: 发现 %d 处异常\n", len(s.anomalies))
	for _, a := range s.anomalies {
		fmt.Println("  -", a)
	}
}

type client struct {
	base   string
	jwt    *jwt.JWTService
	http   *http.Client
	stats  *Stats
	tokens sync.Map
}

func (c *client) token(userID string) (string, error) {
	if t, ok := c.tokens.Load(userID); ok {
		return t.(string), nil
	}
	t, err := c.jwt.GenerateToken(userID, nil)
	if err != nil {
		return "", err
	}
	c.tokens.Store(userID, t)
	return t, nil
}

func (c *client) do(userID, method, path string, body interface{}) (int, envelope, error) {
	var env envelope
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, env, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return 0, env, err
	}
	tok, err := c.token(userID)
	if err != nil {
		return 0, env, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, env, err
	}
	defer resp.Body.Close()
	c.stats.Add(resp.StatusCode, time.Since(start))

	err = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env, err
}

func (c *client) status(userID, otherID string) (string, error) {
	_, env, err := c.do(userID, http.MethodGet, "/api/v1/friends/"+otherID+"/status", nil)
	if err != nil {
		return "", err
	}
	var st struct {
		Status string `json:"status"`
	}
	err = json.Unmarshal(env.Data, &st)
	return st.Status, err
}

// racePair 双方同时发起请求，最多只能有一个成功
func (c *client) racePair(a, b string) {
	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, pair := range [][2]string{{a, b}, {b, a}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			code, _, err := c.do(from, http.MethodPost, "/api/v1/friend-requests", map[string]string{"receiver_id": to})
			if err != nil {
				c.stats.Anomaly("%s -> %s 请求失败: %v", from, to, err)
			}
			codes[i] = code
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusOK {
			created++
		}
	}
	if created != 1 {
		c.stats.Anomaly("%s/%s 互发请求成功 %d 次", a, b, created)
	}

	sa, errA := c.status(a, b)
	sb, errB := c.status(b, a)
	if errA != nil || errB != nil {
		c.stats.Anomaly("%s/%s 查询关系失败", a, b)
		return
	}
	consistent := (sa == "request_sent" && sb == "request_received") || (sa == "request_received" && sb == "request_sent")
	if !consistent {
		c.stats.Anomaly("%s/%s 关系不一致: %s / %s", a, b, sa, sb)
	}
}

// messagePair a 并发向 b 发送 n 条私信，然后核对 b 的未读数
func (c *client) messagePair(a, b string, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := map[string]string{"receiver_id": b, "content": fmt.Sprintf("bench message %d", i)}
			if code, env, err := c.do(a, http.MethodPost, "/api/v1/messages", body); err != nil || code != http.StatusOK {
				c.stats.Anomaly("%s -> %s 私信失败: %d %s %v", a, b, code, env.Reason, err)
			}
		}(i)
	}
	wg.Wait()

	_, env, err := c.do(b, http.MethodGet, "/api/v1/messages/conversations", nil)
	if err != nil {
		c.stats.Anomaly("%s 查询会话失败: %v", b, err)
		return
	}
	var conv struct {
		TotalUnread int64 `json:"total_unread"`
	}
	if err := json.Unmarshal(env.Data, &conv); err != nil || conv.TotalUnread != int64(n) {
		c.stats.Anomaly("%s 未读数 %d，期望 %d", b, conv.TotalUnread, n)
	}
}

func main() {
	base := flag.String("base", "http://localhost:8080", "服务地址")
	cfgPath := flag.String("config", "config/config.yaml", "配置文件（读取JWT密钥）")
	pairs := flag.Int("pairs", 50, "用户对数量")
	messages := flag.Int("messages", 10, "每对用户发送的私信数")
	flag.Parse()

	cfg := config.LoadConfigFrom(*cfgPath)
	c := &client{
		base:  *base,
		jwt:   jwt.NewJWTService(cfg.JWT),
		http:  &http.Client{Timeout: 8 * time.Second},
		stats: NewStats(),
	}

	fmt.Println("=== 好友请求竞争与私信压测 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Printf("目标: %s 用户对: %d 每对私信: %d\n", *base, *pairs, *messages)

	// 每次运行使用新的用户ID，避免与已有数据冲突
	run := uuid.NewString()[:8]
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		a := fmt.Sprintf("bench-%s-%d-a", run, i)
		b := fmt.Sprintf("bench-%s-%d-b", run, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.racePair(a, b)
			c.messagePair(a, b, *messages)
		}()
	}
	wg.Wait()

	c.stats.Report(time.Since(start))
	if len(c.stats.anomalies) > 0 {
		os.Exit(1)
	}
}
