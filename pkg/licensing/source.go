package licensing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// LicenseFileName は保存されるライセンスファイルの名前。
const LicenseFileName = "LICENSE"

// LicenseSource はライセンス文字列の読み込み元。空文字列はライセンスなしを表す。
type LicenseSource interface {
	Read() (string, error)
}

// InMemorySource はメモリ上のライセンス文字列を返す。
type InMemorySource struct {
	license string
}

// NewInMemorySource は新しいInMemorySourceを生成する。
func NewInMemorySource(license string) *InMemorySource {
	return &InMemorySource{license: license}
}

// Read はライセンス文字列を返す。
func (s *InMemorySource) Read() (string, error) {
	return s.license, nil
}

// FileSource は会社名・製品名ごとのライセンスファイルを読み書きする。
// 現在のユーザーのファイルを優先し、なければ全ユーザー共通のファイルを使う。
type FileSource struct {
	fs          afero.Fs
	currentUser string
	allUsers    string
}

// NewFileSource はOSのファイルシステム上のFileSourceを生成する。
func NewFileSource(company, product string) (*FileSource, error) {
	userDir, err := homedir.Expand("~/.config")
	if err != nil {
		return nil, fmt.Errorf("expanding home directory: %w", err)
	}
	return NewFileSourceWithFs(afero.NewOsFs(), company, product, userDir, allUsersDir())
}

// NewFileSourceWithFs はファイルシステムと基準ディレクトリを指定してFileSourceを生成する。
func NewFileSourceWithFs(fs afero.Fs, company, product, userDir, sharedDir string) (*FileSource, error) {
	if err := validateFolderName(company); err != nil {
		return nil, err
	}
	if err := validateFolderName(product); err != nil {
		return nil, err
	}
	return &FileSource{
		fs:          fs,
		currentUser: filepath.Join(userDir, company, product, LicenseFileName),
		allUsers:    filepath.Join(sharedDir, company, product, LicenseFileName),
	}, nil
}

// Read は現在のユーザー、全ユーザーの順にライセンスファイルを読む。
func (s *FileSource) Read() (string, error) {
	for _, path := range []string{s.currentUser, s.allUsers} {
		data, err := afero.ReadFile(s.fs, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}
	return "", nil
}

// Write はライセンスを保存する。全ユーザー共通のファイルは権限不足で失敗しうるため、その失敗は無視する。
func (s *FileSource) Write(content string) error {
	if err := s.writeFile(s.allUsers, content); err != nil {
		slog.Debug("could not write license for all users",
			"operation", "write_license",
			"path", s.allUsers,
			"error", err,
		)
	}
	if err := s.writeFile(s.currentUser, content); err != nil {
		return fmt.Errorf("writing %s: %w", s.currentUser, err)
	}
	return nil
}

func (s *FileSource) writeFile(path, content string) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, path, []byte(content), 0644)
}

func validateFolderName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: folder name must not be empty", ErrInvalidArgument)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:*?"<>|`+"\x00") {
		return fmt.Errorf("%w: folder name %q contains invalid characters", ErrInvalidArgument, name)
	}
	return nil
}

func allUsersDir() string {
	if dir := os.Getenv("PROGRAMDATA"); dir != "" {
		return dir
	}
	return "/etc"
}
