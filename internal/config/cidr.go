package config

import "github.com/yitongOE/LessonData/internal/security"

// validCIDRs 与运行时解析保持一致：接受网段或单个 IP。
func validCIDRs(cidrs []string) error {
	_, err := security.ParsePrefixes(cidrs)
	return err
}
