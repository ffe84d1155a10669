package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var Countries = []string{"Singapore", "Malaysia", "Indonesia", "Vietnam", "Hong Kong"}

// GenerateRandomChineseName 返回姓和名
func GenerateRandomChineseName() (string, string) {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname, name
}

var digits = "0123456789"

// GenerateEmailLocalPart 用名字的拼音加上随机数字生成邮箱前缀，例如 wei.wang12
func GenerateEmailLocalPart(surname, name string) string {
	given := strings.Join(pinyin.LazyConvert(name, nil), "")
	family := strings.Join(pinyin.LazyConvert(surname, nil), "")

	local := given + "." + family
	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		local += string(digits[rand.Intn(len(digits))])
	}

	return local
}

func GenerateRandomEmployee(id int64, department domain.Department, position string, role domain.Role, manager *int64, password string, emailDomainName string) (*domain.Employee, error) {
	surname, name := GenerateRandomChineseName()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	employee := &domain.Employee{
		ID:               id,
		FirstName:        name,
		LastName:         surname,
		Department:       department,
		Position:         position,
		Country:          Countries[rand.Intn(len(Countries))],
		Email:            GenerateEmailLocalPart(surname, name) + "@" + emailDomainName,
		ReportingManager: manager,
		Role:             role,
		PasswordHash:     string(passwordHash),
	}

	return employee, nil
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}
