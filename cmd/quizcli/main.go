// quizcli runs a practice session in the terminal against the same stores the
// server uses. Input is line based: a digit selects an option, an empty line
// is Enter, "<" and ">" move between questions and "q" closes.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/config"
	"github.com/mind-engage/quizpractice/internal/kv"
	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/quiz"
	"github.com/mind-engage/quizpractice/internal/result"
)

func main() {
	_ = godotenv.Load()

	cfg, _, err := config.Load(os.Getenv("QUIZ_CONFIG"))
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}
	log, _ := logging.New(logging.Options{Level: "warn", File: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := bank.Default()
	if cfg.CatalogPath != "" {
		if catalog, err = bank.LoadFile(cfg.CatalogPath); err != nil {
			color.Red("catalog: %v", err)
			os.Exit(1)
		}
	}

	backend, err := kv.Open(ctx, kv.Options{
		Driver:     cfg.StoreDriver,
		DSN:        cfg.StoreDSN,
		BasePath:   cfg.StoreBasePath,
		QuotaBytes: cfg.StoreQuotaBytes,
		Redis:      kv.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix},
		Object: kv.ObjectOptions{
			Endpoint: cfg.MinioEndpoint, AccessKey: cfg.MinioAccessKey, SecretKey: cfg.MinioSecretKey,
			Bucket: cfg.MinioBucket, UseSSL: cfg.MinioUseSSL,
		},
	})
	if err != nil {
		color.Red("store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()

	store := progress.New(backend.Store, catalog,
		progress.WithLogger(log.Named("progress")),
		progress.WithTimeout(cfg.PersistTimeout),
		progress.WithQuota(cfg.StoreQuotaBytes),
	)

	s := quiz.New(catalog, store,
		quiz.WithTickInterval(cfg.TickInterval),
		quiz.WithNotifier(quiz.NotifierFunc(printNotice)),
		quiz.WithLogger(log.Named("quiz")),
	)
	defer s.Close()

	t := bank.ExamType(cfg.DefaultExamType)
	if len(os.Args) > 1 {
		t = bank.ExamType(os.Args[1])
	}
	if err := s.Open(t); err != nil {
		color.Red("%v (%s)", err, examTypeList(catalog))
		os.Exit(2)
	}

	c := &cli{s: s, store: store, catalog: catalog, log: log}
	c.run(ctx, os.Stdin)
}

type cli struct {
	s       *quiz.Session
	store   *progress.Store
	catalog *bank.Bank
	log     *zap.Logger
}

func (c *cli) run(ctx context.Context, in *os.File) {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	shown := false
	show := func() {
		if c.s.View().State != quiz.StateCompleted {
			shown = false
			c.render()
			return
		}
		if !shown {
			c.printResult(ctx)
			shown = true
		}
	}

	show()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := c.command(ctx, strings.TrimSpace(line)); done {
				return
			}
			show()
		case <-time.After(time.Second):
			// the exam timer may have completed the run in the background
			if c.s.View().State == quiz.StateCompleted && !shown {
				show()
			}
		}
	}
}

// command applies one input line and reports whether the CLI should exit.
func (c *cli) command(ctx context.Context, line string) bool {
	var err error
	switch {
	case line == "":
		_, _, err = c.s.HandleKey(ctx, quiz.KeyEnter)
	case line == "<":
		_, _, err = c.s.HandleKey(ctx, quiz.KeyArrowLeft)
	case line == ">":
		_, _, err = c.s.HandleKey(ctx, quiz.KeyArrowRight)
	case line == "q":
		_, _, _ = c.s.HandleKey(ctx, quiz.KeyEscape)
		return true
	case len(line) == 1 && line[0] >= '1' && line[0] <= '9':
		_, _, err = c.s.HandleKey(ctx, line)
	case line == "exam":
		err = c.s.StartExam()
	case line == "reset":
		err = c.s.Reset()
	case line == "review":
		err = c.s.Review()
	case line == "stats":
		c.printStatistics(ctx)
	case line == "scores":
		c.printScores(ctx)
	case line == "clear":
		err = c.store.ClearProgress(ctx, c.s.ExamType())
	case strings.HasPrefix(line, "type "):
		err = c.s.ChangeExamType(bank.ExamType(strings.TrimSpace(strings.TrimPrefix(line, "type "))))
	case line == "help" || line == "?":
		printHelp(c.catalog)
	default:
		color.Yellow("알 수 없는 입력: %q (help)", line)
	}
	if err != nil {
		printErr(err)
	}
	return false
}

func (c *cli) render() {
	v := c.s.View()
	switch v.State {
	case quiz.StateCompleted:
		return
	case quiz.StateIdle:
		color.Yellow("세션이 닫혔습니다.")
		return
	}
	head := fmt.Sprintf("\n[%s] %d / %d  점수 %d  (%s)", v.ExamType, v.CurrentQuestionIndex+1, v.TotalQuestions, v.Score, v.Mode)
	if v.TimeRemainingSeconds != nil {
		r := *v.TimeRemainingSeconds
		head += fmt.Sprintf("  남은 시간 %02d:%02d", r/60, r%60)
	}
	color.Cyan("%s", head)
	if v.LoadError != "" {
		color.Red("%s", v.LoadError)
		return
	}
	if v.Question == nil {
		color.Yellow("문제가 없습니다.")
		return
	}
	q := v.Question
	fmt.Printf("%s\n%s\n", color.New(color.Faint).Sprint(q.Category), q.Question)
	for i, opt := range q.Options {
		mark := " "
		if v.SelectedAnswer != nil && *v.SelectedAnswer == i {
			mark = ">"
		}
		line := fmt.Sprintf(" %s %d. %s", mark, i+1, opt)
		switch {
		case v.ShowResult && i == q.CorrectAnswer:
			color.Green("%s", line)
		case v.ShowResult && mark == ">":
			color.Red("%s", line)
		default:
			fmt.Println(line)
		}
	}
	if v.ShowResult && q.Explanation != "" {
		fmt.Printf("해설: %s\n", q.Explanation)
	}
}

func (c *cli) printResult(ctx context.Context) {
	comp, ok := c.s.Completion()
	if !ok {
		return
	}
	stats, err := c.s.Statistics(ctx)
	if err != nil {
		c.log.Warn("statistics unavailable", zap.Error(err))
	}
	sum := result.ForCompletion(comp, stats)

	color.Yellow("\n%s 결과", sum.ExamType)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"점수", "정답", "오답", "정답률", "등급"})
	table.Append([]string{
		fmt.Sprintf("%d/%d", sum.Score, sum.Total),
		strconv.Itoa(sum.Score),
		strconv.Itoa(sum.Wrong),
		fmt.Sprintf("%d%%", sum.Percentage),
		string(sum.Grade),
	})
	table.Render()

	if len(sum.WrongQuestionIDs) > 0 {
		qs, _ := c.catalog.Questions(sum.ExamType)
		wt := tablewriter.NewWriter(os.Stdout)
		wt.SetHeader([]string{"#", "분류", "문제"})
		for _, q := range result.WrongQuestions(qs, sum.WrongQuestionIDs) {
			wt.Append([]string{strconv.Itoa(q.ID), q.Category, q.Question})
		}
		wt.Render()
		fmt.Println("review: 틀린 문제 다시 풀기, reset: 처음부터")
	}
}

func (c *cli) printStatistics(ctx context.Context) {
	color.Yellow("\n학습 통계")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"시험", "문제", "풀이", "정답", "오답", "정답률"})
	for _, t := range c.catalog.ExamTypes() {
		st := c.store.Statistics(ctx, t)
		table.Append([]string{
			string(t),
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Answered),
			strconv.Itoa(st.Correct),
			strconv.Itoa(st.Incorrect),
			fmt.Sprintf("%d%%", st.Accuracy),
		})
	}
	table.Render()
}

func (c *cli) printScores(ctx context.Context) {
	entries := c.store.Scores(ctx, "")
	if len(entries) == 0 {
		color.Yellow("저장된 점수가 없습니다.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"시험", "점수", "정답률", "시각"})
	for _, e := range entries {
		table.Append([]string{
			string(e.ExamType),
			fmt.Sprintf("%d/%d", e.Score, e.TotalQuestions),
			fmt.Sprintf("%d%%", e.Percentage),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
}

func printNotice(_ context.Context, n quiz.Notice) {
	switch n.Kind {
	case quiz.NoticeAnswerCorrect:
		color.Green("%s", n.Message)
	case quiz.NoticeAnswerIncorrect:
		color.Red("%s", n.Message)
	case quiz.NoticeSaveFailed:
		color.Magenta("%s", n.Message)
	default:
		color.Cyan("%s", n.Message)
	}
}

func printErr(err error) {
	switch {
	case errors.Is(err, quiz.ErrNoWrongAnswers):
		color.Green("틀린 문제가 없습니다.")
	case errors.Is(err, quiz.ErrSessionCompleted):
		color.Yellow("이미 끝난 세션입니다. reset 또는 review를 입력하세요.")
	default:
		color.Red("%v", err)
	}
}

func printHelp(catalog *bank.Bank) {
	fmt.Println(`1-9      보기 선택
Enter    제출 / 다음 문제
< >      이전 / 다음 문제
exam     시험 모드 시작
review   틀린 문제 다시 풀기
reset    처음부터
stats    학습 통계
scores   점수 기록
clear    현재 시험 진행 상황 삭제
type X   시험 종류 변경
q        종료`)
	fmt.Println("시험 종류:", examTypeList(catalog))
}

func examTypeList(catalog *bank.Bank) string {
	types := catalog.ExamTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
