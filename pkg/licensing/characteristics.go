package licensing

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// SystemCharacteristics はsysfs/procfsからハードウェア特性を読み取る。
// 個々の特性の取得に失敗しても処理は止めず、特性名から作る固定値で代替する。
type SystemCharacteristics struct {
	fs afero.Fs
}

// NewSystemCharacteristics はOSのファイルシステムを使うSystemCharacteristicsを生成する。
func NewSystemCharacteristics() *SystemCharacteristics {
	return NewSystemCharacteristicsWithFs(afero.NewOsFs())
}

// NewSystemCharacteristicsWithFs はファイルシステムを指定してSystemCharacteristicsを生成する。
func NewSystemCharacteristicsWithFs(fs afero.Fs) *SystemCharacteristics {
	return &SystemCharacteristics{fs: fs}
}

type characteristic struct {
	property string
	source   string
	read     func(fs afero.Fs) (string, error)
}

var characteristics = []characteristic{
	{property: "ProcessorID", source: "cpuinfo", read: readProcessor},
	{property: "SerialNumber", source: "product", read: readFirstFile("/sys/class/dmi/id/product_serial", "/sys/class/dmi/id/product_uuid")},
	{property: "SerialNumber", source: "board", read: readFirstFile("/sys/class/dmi/id/board_serial")},
	{property: "SerialNumber", source: "disk", read: readDiskSerial},
}

// CharacteristicsForCurrentComputer はプロセッサ、製品、ベースボード、ディスクの順で特性を返す。
func (s *SystemCharacteristics) CharacteristicsForCurrentComputer() []string {
	result := make([]string, 0, len(characteristics))
	for _, c := range characteristics {
		v, err := c.read(s.fs)
		if err != nil || v == "" {
			slog.Debug("hardware characteristic unavailable, using fallback",
				"operation", "characteristics_for_current_computer",
				"property", c.property,
				"source", c.source,
				"error", err,
			)
			v = c.property + c.source
		}
		result = append(result, v)
	}
	return result
}

func readProcessor(fs afero.Fs) (string, error) {
	data, err := afero.ReadFile(fs, "/proc/cpuinfo")
	if err != nil {
		return "", err
	}

	// 1つ目のプロセッサのブロックのみを使う
	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "vendor_id", "cpu family", "model", "model name", "stepping", "Serial", "CPU implementer", "CPU part":
			sb.WriteString(strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func readFirstFile(paths ...string) func(fs afero.Fs) (string, error) {
	return func(fs afero.Fs) (string, error) {
		var lastErr error
		for _, p := range paths {
			data, err := afero.ReadFile(fs, p)
			if err != nil {
				lastErr = err
				continue
			}
			if v := strings.TrimSpace(string(data)); v != "" {
				return v, nil
			}
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no value in %s", strings.Join(paths, ", "))
		}
		return "", lastErr
	}
}

func readDiskSerial(fs afero.Fs) (string, error) {
	devices, err := afero.Glob(fs, "/sys/block/*/device")
	if err != nil {
		return "", err
	}
	sort.Strings(devices)
	for _, dev := range devices {
		if v, err := readFirstFile(filepath.Join(dev, "serial"), filepath.Join(dev, "wwid"))(fs); err == nil {
			return v, nil
		}
	}
	return "", fmt.Errorf("no physical disk serial found")
}
