package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsHaha     int64
	errorsMahua    int64
	warnsHaha      int64
	warnsMahua     int64
	pollCycles     int64
	ordersIngested int64
	ordersStored   int64
	decisionsMade  int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "haha") {
		atomic.AddInt64(&warnsHaha, 1)
	} else if strings.Contains(component, "mahua") {
		atomic.AddInt64(&warnsMahua, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "haha") {
		atomic.AddInt64(&errorsHaha, 1)
	} else if strings.Contains(component, "mahua") {
		atomic.AddInt64(&errorsMahua, 1)
	}
}

// IncrementPollCycle records one completed poll cycle for a platform.
func IncrementPollCycle(platform string) {
	atomic.AddInt64(&pollCycles, 1)
	recordChannel("poll_"+platform, 0)
}

// IncrementOrdersIngested records orders that survived dedup for a platform.
func IncrementOrdersIngested(platform string, count int) {
	atomic.AddInt64(&ordersIngested, int64(count))
	recordChannel("orders_"+platform, count)
}

// IncrementOrdersStored records rows inserted by the store writer.
func IncrementOrdersStored(count int) {
	atomic.AddInt64(&ordersStored, int64(count))
}

// IncrementDecisions records decisions emitted by the rule engine.
func IncrementDecisions(count int) {
	atomic.AddInt64(&decisionsMade, int64(count))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_haha":     atomic.LoadInt64(&errorsHaha),
		"errors_mahua":    atomic.LoadInt64(&errorsMahua),
		"warns_haha":      atomic.LoadInt64(&warnsHaha),
		"warns_mahua":     atomic.LoadInt64(&warnsMahua),
		"poll_cycles":     atomic.LoadInt64(&pollCycles),
		"orders_ingested": atomic.LoadInt64(&ordersIngested),
		"orders_stored":   atomic.LoadInt64(&ordersStored),
		"decisions":       atomic.LoadInt64(&decisionsMade),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"channels":        channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsHaha"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_haha"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsMahua"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_mahua"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("PollCycles"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["poll_cycles"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersIngested"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_ingested"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersStored"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_stored"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Decisions"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["decisions"].(int64)))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
