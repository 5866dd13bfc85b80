package inmemdb

import (
	"context"
	"sync"

	"github.com/LucadeVeintemilla/emotionTracking/core/student"
)

// studentRepository is a fixed roster. It stands in for the directory backend in tests and demos.
type studentRepository struct {
	mutex sync.RWMutex
	table []student.Student
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(students ...student.Student) *studentRepository {
	return &studentRepository{table: students}
}

func (repo *studentRepository) Add(students ...student.Student) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.table = append(repo.table, students...)
}

func (repo *studentRepository) QueryStudents(_ context.Context) ([]student.Student, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()
	return append([]student.Student(nil), repo.table...), nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()
	for _, s := range repo.table {
		if s.ID == id {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}
