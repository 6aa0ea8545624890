package filesys_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lc/ipfreq/internal/filesys"
	"github.com/lc/ipfreq/internal/mocks"
)

type AtomicWriteTestSuite struct {
	suite.Suite
	dir string
}

func (s *AtomicWriteTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *AtomicWriteTestSuite) TestCreatesFile() {
	dst := filepath.Join(s.dir, "report.txt")

	s.Require().NoError(filesys.AtomicWrite(filesys.OS(), dst, []byte("hello\n"), 0o640))

	data, err := os.ReadFile(dst)
	s.Require().NoError(err)
	s.Equal("hello\n", string(data))

	fi, err := os.Stat(dst)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o640), fi.Mode().Perm())
}

func (s *AtomicWriteTestSuite) TestReplacesExistingFile() {
	dst := filepath.Join(s.dir, "report.txt")
	s.Require().NoError(os.WriteFile(dst, []byte("a much longer previous report\n"), 0o644))

	s.Require().NoError(filesys.AtomicWrite(filesys.OS(), dst, []byte("short\n"), 0o644))

	data, err := os.ReadFile(dst)
	s.Require().NoError(err)
	s.Equal("short\n", string(data))

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *AtomicWriteTestSuite) TestRenameFailureRemovesTemp() {
	tmp, err := os.CreateTemp(s.dir, ".ipfreq-*")
	s.Require().NoError(err)

	boom := errors.New("rename failed")
	fs := new(mocks.MockOsFS)
	fs.On("CreateTemp", s.dir, ".ipfreq-*").Return(tmp, nil)
	fs.On("Chmod", tmp.Name(), os.FileMode(0o644)).Return(nil)
	fs.On("Rename", tmp.Name(), mock.Anything).Return(boom)
	fs.On("Remove", tmp.Name()).Return(nil)

	err = filesys.AtomicWrite(fs, filepath.Join(s.dir, "report.txt"), []byte("x"), 0o644)
	s.ErrorIs(err, boom)
	fs.AssertExpectations(s.T())
	fs.AssertNotCalled(s.T(), "Open", mock.Anything)
}

func (s *AtomicWriteTestSuite) TestCreateTempFailure() {
	boom := errors.New("no space left on device")
	fs := new(mocks.MockOsFS)
	fs.On("CreateTemp", s.dir, ".ipfreq-*").Return(nil, boom)

	err := filesys.AtomicWrite(fs, filepath.Join(s.dir, "report.txt"), []byte("x"), 0o644)
	s.ErrorIs(err, boom)
	fs.AssertNotCalled(s.T(), "Rename", mock.Anything, mock.Anything)
}

func TestAtomicWriteSuite(t *testing.T) {
	suite.Run(t, new(AtomicWriteTestSuite))
}
